package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goliatone/go-print"

	storefront "github.com/goliatone/go-storefront"
)

type command struct {
	args    int
	auth    bool
	roles   []string
	handler func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":    {args: 2, handler: (*App).login},
	"register": {args: 4, handler: (*App).register},
	"logout":   {handler: (*App).logout},
	"whoami":   {handler: (*App).whoami},
	"products": {handler: (*App).products},
	"product":  {args: 1, handler: (*App).product},
	"reviews":  {args: 1, handler: (*App).reviews},
	"review":   {args: 2, auth: true, handler: (*App).review},
	"cart":     {auth: true, handler: (*App).cart},
	"add":      {args: 1, auth: true, handler: (*App).add},
	"update":   {args: 2, auth: true, handler: (*App).update},
	"remove":   {args: 1, auth: true, handler: (*App).remove},
	"checkout": {args: 2, auth: true, handler: (*App).checkout},
	"orders":   {auth: true, roles: []string{storefront.RoleUser, storefront.RoleAdmin}, handler: (*App).orders},
	"order":    {args: 1, auth: true, roles: []string{storefront.RoleUser, storefront.RoleAdmin}, handler: (*App).order},
}

// Run restores the session and dispatches name.
func (a *App) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", name)
	}
	if len(args) < cmd.args {
		return fmt.Errorf("%s needs %d argument(s)", name, cmd.args)
	}

	if _, err := a.client.Initialize(ctx); err != nil && !storefront.IsDecodeError(err) {
		return err
	}

	if cmd.auth {
		guard := storefront.NewRouteGuard()
		switch d, _ := guard.Check(a.client.Session(), cmd.roles...); d {
		case storefront.DecisionRedirectLogin:
			return fmt.Errorf("%s requires a session, run: storefront login <email> <password>", name)
		case storefront.DecisionRedirectUnauthorized:
			return fmt.Errorf("%s is not available for your account", name)
		}
	}

	return cmd.handler(a, ctx, args)
}

func (a *App) login(ctx context.Context, args []string) error {
	session, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", session.Subject)
	return a.printCart()
}

func (a *App) register(ctx context.Context, args []string) error {
	session, err := a.client.Register(ctx, storefront.RegisterPayload{
		FirstName: args[0],
		LastName:  args[1],
		Email:     args[2],
		Password:  args[3],
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "welcome %s\n", session.Subject)
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	a.client.Logout(ctx)
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) whoami(_ context.Context, _ []string) error {
	session := a.client.Session()
	fmt.Fprintln(a.out, session)
	fmt.Fprintf(a.out, "admin area: %s\n", a.client.Decide(storefront.RoleAdmin))
	return nil
}

func (a *App) products(ctx context.Context, _ []string) error {
	products, err := a.client.Catalog().ListProducts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tRATING")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f (%d)\n", p.ID, p.Name, p.Price.StringFixed(2), p.StockQuantity, p.AverageRating, p.ReviewCount)
	}
	return w.Flush()
}

func (a *App) product(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	p, err := a.client.Catalog().GetProduct(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, print.MaybePrettyJSON(p))
	return nil
}

func (a *App) reviews(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	reviews, err := a.client.Catalog().ListReviews(ctx, id)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Fprintln(a.out, "no reviews yet")
		return nil
	}
	for _, r := range reviews {
		fmt.Fprintf(a.out, "%d/5 %s: %s\n", r.Rating, r.UserName, r.Comment)
	}
	return nil
}

func (a *App) review(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rating must be a number: %w", err)
	}
	review, err := a.client.Catalog().SubmitReview(ctx, storefront.ReviewPayload{
		ProductID: id,
		Rating:    rating,
		Comment:   strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "review %d saved\n", review.ID)
	return nil
}

func (a *App) cart(ctx context.Context, _ []string) error {
	if _, err := a.client.Cart().Fetch(ctx); err != nil {
		return err
	}
	return a.printCart()
}

func (a *App) add(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	qty := 1
	if len(args) > 1 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}
	}
	if err := a.client.Cart().AddItem(ctx, id, qty); err != nil {
		return err
	}
	return a.printCart()
}

func (a *App) update(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quantity must be a number: %w", err)
	}
	if _, err := a.client.Cart().Fetch(ctx); err != nil {
		return err
	}
	if err := a.client.Cart().ChangeQuantity(ctx, id, qty, a.confirmRemoval); err != nil {
		return err
	}
	return a.printCart()
}

func (a *App) remove(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if _, err := a.client.Cart().Fetch(ctx); err != nil {
		return err
	}
	if err := a.client.Cart().ChangeQuantity(ctx, id, 0, a.confirmRemoval); err != nil {
		return err
	}
	return a.printCart()
}

func (a *App) confirmRemoval(_ context.Context, line storefront.CartLine) bool {
	name := line.Product.Name
	if name == "" {
		name = fmt.Sprintf("product %d", line.ProductID)
	}
	return a.confirm(fmt.Sprintf("remove %s from your cart?", name))
}

func (a *App) checkout(ctx context.Context, args []string) error {
	if _, err := a.client.Cart().Fetch(ctx); err != nil {
		return err
	}
	order, err := a.client.Orders().PlaceOrder(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %d placed, total %s (%s)\n", order.ID, order.TotalAmount.StringFixed(2), order.Status)
	return nil
}

func (a *App) orders(ctx context.Context, _ []string) error {
	orders, err := a.client.Orders().ListOrders(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tITEMS\tTOTAL\tSTATUS")
	for _, o := range orders {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", o.ID, o.OrderDate.Format("2006-01-02 15:04"), o.TotalItems(), o.TotalAmount.StringFixed(2), o.Status)
	}
	return w.Flush()
}

func (a *App) order(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	order, err := a.client.Orders().GetOrder(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, print.MaybePrettyJSON(order))
	return nil
}

func (a *App) printCart() error {
	cart := a.client.Cart().Cart()
	if msg := a.client.Cart().LastError(); msg != "" {
		fmt.Fprintf(a.out, "cart: %s\n", msg)
	}
	if cart.IsEmpty() {
		fmt.Fprintln(a.out, "your cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tQTY\tSUBTOTAL")
	for _, l := range cart.Lines() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", l.ProductID, l.Product.Name, l.Quantity, l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t%d\t%s\n", cart.TotalItems(), cart.TotalPrice().StringFixed(2))
	return w.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
