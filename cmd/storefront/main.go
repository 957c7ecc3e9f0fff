package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/catalog"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/expiry"
	"github.com/example/ec-storefront/internal/idle"
	"github.com/example/ec-storefront/internal/model"
	"github.com/example/ec-storefront/internal/storefront"
)

// Every typed line counts as keyboard activity for the idle monitor
const inputEvent = "keydown"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	log.Println("[Storefront] ========================================")
	log.Println("[Storefront] EC Storefront client")
	log.Println("[Storefront] ========================================")
	log.Printf("[Storefront] API: %s", cfg.APIURL)
	log.Printf("[Storefront] Storage: %s", backendName(cfg.Storage.Backend))
	log.Printf("[Storefront] Idle window: %s", cfg.IdleWindow)

	activity := idle.NewChannel(cfg.ActivityEvents...)
	sf, err := storefront.New(ctx, storefront.Options{
		Config:   cfg,
		Activity: activity,
		Navigate: func(path string) { fmt.Printf("-> %s\n", path) },
	})
	if err != nil {
		log.Fatalf("[Storefront] Failed to start: %v", err)
	}
	defer sf.Close()

	sf.Coordinator.OnChange(func(s expiry.State) {
		if s == expiry.ExpiredPendingAck {
			fmt.Println("!! Your session has expired. Type 'ack' to log in again.")
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[Storefront] Shutting down...")
		cancel()
		os.Stdin.Close()
	}()

	r := &repl{sf: sf}
	scanner := bufio.NewScanner(os.Stdin)
	prompt()
	for scanner.Scan() {
		activity.Emit(inputEvent)
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return
		}
		if line != "" {
			if err := r.run(ctx, strings.Fields(line)); err != nil {
				fmt.Printf("error: %s\n", apiclient.Message(err))
			}
		}
		if ctx.Err() != nil {
			return
		}
		prompt()
	}
}

func prompt() { fmt.Print("> ") }

func backendName(b string) string {
	if b == "" {
		return "memory"
	}
	return b
}

type repl struct {
	sf *storefront.Storefront
}

const help = `commands:
  login <email> <password> | logout | whoami
  products [keyword] | product <id> | reviews <id> | review <id> <rating> <text...>
  categories | brands
  cart | add <productId> [qty] | inc <lineId> | dec <lineId> | qty <lineId> <n> | rm <lineId> | clear
  addresses | address <fullName> <city> <line...> | checkout <addressId> | pay <paymentId> [fail]
  orders | order <number>
  wishlist | wish <productId>
  go <path> | ack | quit`

func (r *repl) run(ctx context.Context, args []string) error {
	sf := r.sf
	if sf.Coordinator.State() == expiry.ExpiredPendingAck && args[0] != "ack" {
		fmt.Println("Session expired. Type 'ack' to continue.")
		return nil
	}

	switch args[0] {
	case "help":
		fmt.Println(help)
	case "ack":
		return sf.Coordinator.Acknowledge(ctx)
	case "login":
		if len(args) != 3 {
			return usage("login <email> <password>")
		}
		u, err := sf.Session.Login(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Welcome %s (%s)\n", u.Email, u.Role)
		if _, err := sf.Cart.FetchCart(ctx); err != nil && !apiclient.IsNotFound(err) {
			return err
		}
	case "logout":
		return sf.Session.Logout(ctx)
	case "whoami":
		snap := sf.Session.Snapshot()
		if !snap.Authenticated() || snap.User == nil {
			fmt.Println("anonymous")
			return nil
		}
		fmt.Printf("%d %s %s\n", snap.User.ID, snap.User.Email, snap.User.Role)
	case "go":
		if len(args) != 2 {
			return usage("go <path>")
		}
		d := sf.Authorize(ctx, args[1])
		if !d.Allow {
			fmt.Printf("-> %s\n", d.Redirect)
			return nil
		}
		fmt.Printf("-> %s\n", args[1])
	case "products":
		if len(args) > 1 {
			sf.Catalog.SetFilters(catalog.WithKeyword(strings.Join(args[1:], " ")), catalog.WithPage(0))
		} else {
			sf.Catalog.SetFilters(catalog.WithKeyword(""), catalog.WithPage(0))
		}
		page, err := sf.Catalog.LoadProducts(ctx)
		if err != nil {
			return err
		}
		for _, p := range page.Items {
			fmt.Printf("%4d  %-10s %-30s %8s  stock %d\n", p.ID, p.SKU, p.Name, p.Price.StringFixed(2), p.Stock)
		}
		fmt.Printf("%d products\n", page.TotalItems)
	case "product":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		p, err := sf.Catalog.LoadProduct(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n%s\nprice %s  stock %d\n", p.SKU, p.Name, p.Description, p.Price.StringFixed(2), p.Stock)
	case "reviews":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		reviews, err := sf.Catalog.Reviews(ctx, id)
		if err != nil {
			return err
		}
		for _, rv := range reviews {
			fmt.Printf("%d/5  %s\n", rv.Rating, rv.Text)
		}
	case "review":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		if len(args) < 4 {
			return usage("review <id> <rating> <text...>")
		}
		rating, err := strconv.Atoi(args[2])
		if err != nil {
			return usage("review <id> <rating> <text...>")
		}
		_, err = sf.Catalog.PostReview(ctx, id, rating, strings.Join(args[3:], " "))
		return err
	case "categories":
		cats, err := sf.Catalog.LoadCategories(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Printf("%4d  %s\n", c.ID, c.Name)
		}
	case "brands":
		brands, err := sf.Catalog.LoadBrands(ctx)
		if err != nil {
			return err
		}
		for _, b := range brands {
			fmt.Printf("%4d  %s\n", b.ID, b.Name)
		}
	case "cart":
		c, err := sf.Cart.FetchCart(ctx)
		if err != nil {
			return err
		}
		printCart(c)
	case "add":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		qty := 1
		if len(args) > 2 {
			if qty, err = strconv.Atoi(args[2]); err != nil {
				return usage("add <productId> [qty]")
			}
		}
		p, err := sf.Catalog.LoadProduct(ctx, id)
		if err != nil {
			return err
		}
		c, err := sf.Cart.AddItem(ctx, p.ID, qty, p.Price)
		if err != nil {
			return err
		}
		printCart(c)
	case "inc", "dec", "rm":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		var c model.Cart
		switch args[0] {
		case "inc":
			c, err = sf.Cart.Increment(ctx, id)
		case "dec":
			c, err = sf.Cart.Decrement(ctx, id)
		default:
			c, err = sf.Cart.RemoveItem(ctx, id)
		}
		if err != nil {
			return err
		}
		printCart(c)
	case "qty":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		n, err := intArg(args, 2)
		if err != nil {
			return err
		}
		c, err := sf.Cart.SetQuantity(ctx, id, int(n))
		if err != nil {
			return err
		}
		printCart(c)
	case "clear":
		c, err := sf.Cart.ClearCart(ctx)
		if err != nil {
			return err
		}
		printCart(c)
	case "addresses":
		list, err := sf.Addresses.Fetch(ctx)
		if err != nil {
			return err
		}
		for _, a := range list {
			fmt.Printf("%4d  %s, %s, %s\n", a.ID, a.FullName, a.AddressLine, a.City)
		}
	case "address":
		if len(args) < 4 {
			return usage("address <fullName> <city> <line...>")
		}
		a, err := sf.Addresses.Add(ctx, model.Address{FullName: args[1], City: args[2], AddressLine: strings.Join(args[3:], " ")})
		if err != nil {
			return err
		}
		fmt.Printf("address %d saved\n", a.ID)
	case "checkout":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		res, err := sf.Orders.Checkout(ctx, id)
		if res != nil && res.Order != nil {
			fmt.Printf("order %s total %s\n", res.Order.OrderNumber, res.Order.TotalAmount.StringFixed(2))
		}
		if res != nil && res.Payment != nil {
			fmt.Printf("payment %s %s\n", res.Payment.ID, res.Payment.Status)
		}
		return err
	case "pay":
		if len(args) < 2 {
			return usage("pay <paymentId> [fail]")
		}
		p, err := sf.Orders.VerifyPayment(ctx, args[1], len(args) < 3 || args[2] != "fail")
		if err != nil {
			return err
		}
		fmt.Printf("payment %s %s\n", p.ID, p.Status)
	case "orders":
		list, err := sf.Orders.Fetch(ctx)
		if err != nil {
			return err
		}
		for _, o := range list {
			fmt.Printf("%s  %-10s %8s\n", o.OrderNumber, o.Status, o.TotalAmount.StringFixed(2))
		}
	case "order":
		if len(args) != 2 {
			return usage("order <number>")
		}
		o, err := sf.Orders.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  %s\n", o.OrderNumber, o.Status, o.TotalAmount.StringFixed(2))
		for _, l := range o.Items {
			fmt.Printf("  %dx %s @ %s\n", l.Quantity, l.ProductName, l.UnitPrice.StringFixed(2))
		}
	case "wishlist":
		for _, e := range sf.Wishlist.Items() {
			fmt.Printf("%4d  %s\n", e.ProductID, e.Name)
		}
	case "wish":
		id, err := intArg(args, 1)
		if err != nil {
			return err
		}
		p, err := sf.Catalog.LoadProduct(ctx, id)
		if err != nil {
			return err
		}
		added, err := sf.Wishlist.Toggle(ctx, *p)
		if err != nil {
			return err
		}
		fmt.Printf("wishlisted: %t\n", added)
	default:
		fmt.Println(help)
	}
	return nil
}

func printCart(c model.Cart) {
	if len(c.Items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, l := range c.Items {
		fmt.Printf("%4d  %-30s %3d x %8s\n", l.ID, l.ProductName, l.Quantity, l.UnitPrice.StringFixed(2))
	}
	fmt.Printf("%d items, total %s\n", c.TotalItems, c.TotalAmount.Round(2).StringFixed(2))
}

func intArg(args []string, i int) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[i])
	}
	return n, nil
}

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}
