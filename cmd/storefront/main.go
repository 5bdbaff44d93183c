// storefront is a command-line shopper for the storefront backend.
// Each command performs a single operation; the session, guest cart and
// cookies persist in a local state file between runs.
//
// Commands:
//
//	storefront whoami
//	storefront login -email E -password P
//	storefront logout
//	storefront register -name N -email E -password P
//	storefront cart
//	storefront add -product ID [-qty N]
//	storefront set -product ID -qty N
//	storefront rm -product ID
//	storefront clear
//	storefront replace -items ID=QTY[,ID=QTY...]
//	storefront merge
//	storefront wishlist
//	storefront toggle -product ID
//	storefront move -product ID
//	storefront products [-search TEXT] [-category C] [-page N]
//	storefront product -id ID
//	storefront checkout -payment METHOD -name N -street S -city C -zip Z -country C
//	storefront orders
//	storefront cancel -id ID [-reason TEXT]
//
// Examples:
//
//	storefront add -product 665f1c -qty 2        # guest cart, kept locally
//	storefront login -email ada@example.com -password secret   # merges it
//	storefront checkout -payment card -name Ada -street "1 Main St" -city London -zip N1 -country UK
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/internal/api"
	"storefront/internal/localstore"
	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/storefront"
)

// Global flags (apply to all commands)
var (
	backendURL string
	statePath  string
	chrome     bool
	quiet      bool
	noColor    bool
	verbose    bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, fs *flag.FlagSet, args []string)
}

var commands = map[string]command{
	"whoami":   {"", "Show the current session", runWhoami},
	"login":    {"-email E -password P", "Sign in and merge the guest cart", runLogin},
	"logout":   {"", "Sign out and clear local state", runLogout},
	"register": {"-name N -email E -password P", "Create an account", runRegister},
	"cart":     {"", "Show the live cart", runCart},
	"add":      {"-product ID [-qty N]", "Add a product to the cart", runAdd},
	"set":      {"-product ID -qty N", "Set a line's quantity", runSet},
	"rm":       {"-product ID", "Remove a line", runRemove},
	"clear":    {"", "Empty the cart", runClear},
	"replace":  {"-items ID=QTY[,ID=QTY...]", "Make the cart match exactly", runReplace},
	"merge":    {"", "Retry merging the guest cart", runMerge},
	"wishlist": {"", "Show the wishlist", runWishlist},
	"toggle":   {"-product ID", "Add to or remove from the wishlist", runToggle},
	"move":     {"-product ID", "Move a wishlist product into the cart", runMove},
	"products": {"[-search TEXT] [-category C] [-page N]", "List or search products", runProducts},
	"product":  {"-id ID", "Show one product", runProduct},
	"checkout": {"-payment METHOD -name N -street S -city C -zip Z -country C", "Place an order", runCheckout},
	"orders":   {"", "List orders", runOrders},
	"cancel":   {"-id ID [-reason TEXT]", "Cancel an order", runCancel},
}

var order = []string{
	"whoami", "login", "logout", "register",
	"cart", "add", "set", "rm", "clear", "replace", "merge",
	"wishlist", "toggle", "move",
	"products", "product", "checkout", "orders", "cancel",
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&backendURL, "backend", envOr("STOREFRONT_BACKEND", api.DefaultBaseURL), "Backend API base URL")
	fs.StringVar(&statePath, "state", os.Getenv("STOREFRONT_STATE"), "Local state file (default: user config dir)")
	fs.BoolVar(&chrome, "chrome", false, "Use a Chrome TLS fingerprint")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - debug logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: storefront %s %s\n\n%s\n\nOptions:\n", name, cmd.usage, cmd.help)
		fs.PrintDefaults()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd.run(ctx, fs, os.Args[2:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "storefront - storefront command-line shopper\n\nUsage:\n  storefront <command> [options]\n\nCommands:\n")
	for _, name := range order {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", name, commands[name].help)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'storefront <command> -h' for command-specific options.\n")
}

// open parses flags and returns an initialized storefront.
func open(ctx context.Context, fs *flag.FlagSet, args []string) *storefront.Storefront {
	fs.Parse(args)
	if noColor {
		disableColors()
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	if quiet && !verbose {
		out = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	path := statePath
	if path == "" {
		var err error
		if path, err = localstore.DefaultPath(); err != nil {
			fatal("%v", err)
		}
	}

	client, err := api.New(api.Config{
		BaseURL:           backendURL,
		ChromeFingerprint: chrome,
		Logger:            logger,
	})
	if err != nil {
		fatal("Creating client: %v", err)
	}
	sf, err := storefront.New(storefront.Options{
		Backend: client,
		Store:   localstore.NewFile(path),
		Logger:  logger,
	})
	if err != nil {
		fatal("%v", err)
	}
	sf.Init(ctx)
	return sf
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func runWhoami(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	printSession(sf.Session())
}

func runLogin(ctx context.Context, fs *flag.FlagSet, args []string) {
	var email, password string
	fs.StringVar(&email, "email", "", "Account email (required)")
	fs.StringVar(&password, "password", os.Getenv("STOREFRONT_PASSWORD"), "Password (or STOREFRONT_PASSWORD)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if email == "" || password == "" {
		fs.Usage()
		os.Exit(1)
	}

	s, err := sf.Login(ctx, model.Credentials{Email: email, Password: password})
	if err != nil && !s.Authenticated {
		fatal("Login failed: %v", err)
	}
	if err != nil {
		printWarning("Signed in, but the guest cart was not merged: %v", err)
		printInfo("Run 'storefront merge' to retry")
	}
	printSuccess("Signed in")
	printSession(s)
	printCart(sf.Cart())
}

func runLogout(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	sf.Logout(ctx)
	printSuccess("Signed out")
}

func runRegister(ctx context.Context, fs *flag.FlagSet, args []string) {
	var reg model.Registration
	fs.StringVar(&reg.Name, "name", "", "Display name")
	fs.StringVar(&reg.Email, "email", "", "Account email (required)")
	fs.StringVar(&reg.Password, "password", os.Getenv("STOREFRONT_PASSWORD"), "Password (or STOREFRONT_PASSWORD)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	user, err := sf.Register(ctx, reg)
	if err != nil {
		fatal("Registration failed: %v", err)
	}
	printSuccess("Account created for %s", user.Email)
	printInfo("Run 'storefront login' to sign in")
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runCart(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	c, err := sf.FetchCart(ctx)
	if err != nil {
		fatal("Loading cart: %v", err)
	}
	printCart(c)
}

func runAdd(ctx context.Context, fs *flag.FlagSet, args []string) {
	var productID string
	var qty int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&qty, "qty", 1, "Quantity")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}
	c, err := sf.AddToCartByID(ctx, productID, qty)
	if err != nil {
		fatal("Adding to cart: %v", err)
	}
	printSuccess("Added %d × %s", qty, productID)
	printCart(c)
}

func runSet(ctx context.Context, fs *flag.FlagSet, args []string) {
	var productID string
	var qty int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&qty, "qty", 0, "New quantity (required, at least 1)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}
	c, err := sf.UpdateCartLine(ctx, productID, qty)
	if err != nil {
		fatal("Updating cart: %v", err)
	}
	printCart(c)
}

func runRemove(ctx context.Context, fs *flag.FlagSet, args []string) {
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}
	c, err := sf.RemoveCartLine(ctx, productID)
	if err != nil {
		fatal("Removing from cart: %v", err)
	}
	printCart(c)
}

func runClear(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	if _, err := sf.ClearCart(ctx); err != nil {
		fatal("Clearing cart: %v", err)
	}
	printSuccess("Cart cleared")
}

func runReplace(ctx context.Context, fs *flag.FlagSet, args []string) {
	var items string
	fs.StringVar(&items, "items", "", "Comma-separated ID=QTY pairs (empty clears the cart)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	desired, err := parseItems(items)
	if err != nil {
		fatal("%v", err)
	}
	c, err := sf.ReplaceCart(ctx, desired)
	if err != nil {
		fatal("Replacing cart: %v", err)
	}
	printCart(c)
}

// parseItems reads "P1=2,P2=1". A bare ID means quantity 1.
func parseItems(s string) ([]reconcile.DesiredItem, error) {
	var out []reconcile.DesiredItem
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qtyStr, found := strings.Cut(part, "=")
		qty := 1
		if found {
			n, err := strconv.Atoi(qtyStr)
			if err != nil {
				return nil, fmt.Errorf("invalid quantity in %q", part)
			}
			qty = n
		}
		out = append(out, reconcile.DesiredItem{ProductID: id, Quantity: qty})
	}
	return out, nil
}

func runMerge(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	c, err := sf.MergeGuestCart(ctx)
	if err != nil {
		fatal("Merging cart: %v", err)
	}
	printSuccess("Guest cart merged")
	printCart(c)
}

// =============================================================================
// WISHLIST COMMANDS
// =============================================================================

func runWishlist(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	wl, err := sf.FetchWishlist(ctx)
	if err != nil {
		fatal("Loading wishlist: %v", err)
	}
	printWishlist(wl)
}

func runToggle(ctx context.Context, fs *flag.FlagSet, args []string) {
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}
	added, err := sf.ToggleWishlist(ctx, productID)
	if err != nil {
		fatal("Toggling wishlist: %v", err)
	}
	if added {
		printSuccess("Saved %s", productID)
	} else {
		printSuccess("Removed %s", productID)
	}
	printWishlist(sf.Wishlist())
}

func runMove(ctx context.Context, fs *flag.FlagSet, args []string) {
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}
	wl, c, err := sf.MoveToCart(ctx, productID)
	if err != nil {
		fatal("Moving to cart: %v", err)
	}
	printSuccess("Moved %s to the cart", productID)
	printWishlist(wl)
	printCart(c)
}

// =============================================================================
// CATALOG AND ORDER COMMANDS
// =============================================================================

func runProducts(ctx context.Context, fs *flag.FlagSet, args []string) {
	var q model.ProductQuery
	fs.StringVar(&q.Search, "search", "", "Free text search")
	fs.StringVar(&q.Category, "category", "", "Category filter")
	fs.StringVar(&q.Sort, "sort", "", "Sort order")
	fs.IntVar(&q.Page, "page", 1, "Page number")
	fs.IntVar(&q.Limit, "limit", 12, "Page size")
	sf := open(ctx, fs, args)
	defer sf.Close()

	var (
		page *model.ProductPage
		err  error
	)
	if q.Search != "" {
		page, err = sf.SearchProducts(ctx, q)
	} else {
		page, err = sf.Products(ctx, q)
	}
	if err != nil {
		fatal("Listing products: %v", err)
	}
	for _, p := range page.Products {
		if quiet {
			fmt.Println(p.ID)
			continue
		}
		fmt.Printf("  %s%s%s  %-32s %8s  stock %d\n", colorCyan, p.ID, colorReset, p.Name, "$"+p.Price.String(), p.Stock)
	}
	printInfo("Page %d of %d (%d products)", page.Page, page.Pages, page.Total)
}

func runProduct(ctx context.Context, fs *flag.FlagSet, args []string) {
	var id string
	fs.StringVar(&id, "id", "", "Product ID (required)")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}
	p, err := sf.Product(ctx, id)
	if err != nil {
		fatal("Loading product: %v", err)
	}
	printJSON(p)
}

func runCheckout(ctx context.Context, fs *flag.FlagSet, args []string) {
	var req model.OrderRequest
	fs.StringVar(&req.PaymentMethod, "payment", "", "Payment method (required)")
	fs.StringVar(&req.ShippingAddress.FullName, "name", "", "Recipient name")
	fs.StringVar(&req.ShippingAddress.Street, "street", "", "Street address")
	fs.StringVar(&req.ShippingAddress.City, "city", "", "City")
	fs.StringVar(&req.ShippingAddress.State, "region", "", "State or region")
	fs.StringVar(&req.ShippingAddress.PostalCode, "zip", "", "Postal code")
	fs.StringVar(&req.ShippingAddress.Country, "country", "", "Country")
	fs.StringVar(&req.ShippingAddress.Phone, "phone", "", "Phone")
	fs.StringVar(&req.Notes, "notes", "", "Order notes")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if req.PaymentMethod == "" {
		fs.Usage()
		os.Exit(1)
	}
	o, err := sf.Checkout(ctx, req)
	if err != nil {
		fatal("Checkout failed: %v", err)
	}
	if quiet {
		fmt.Println(o.ID)
		return
	}
	printSuccess("Order placed")
	printOrder(*o)
}

func runOrders(ctx context.Context, fs *flag.FlagSet, args []string) {
	sf := open(ctx, fs, args)
	defer sf.Close()
	orders, err := sf.Orders(ctx)
	if err != nil {
		fatal("Listing orders: %v", err)
	}
	if len(orders) == 0 {
		printInfo("No orders")
	}
	for _, o := range orders {
		printOrder(o)
	}
}

func runCancel(ctx context.Context, fs *flag.FlagSet, args []string) {
	var id, reason string
	fs.StringVar(&id, "id", "", "Order ID (required)")
	fs.StringVar(&reason, "reason", "", "Cancellation reason")
	sf := open(ctx, fs, args)
	defer sf.Close()

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}
	o, err := sf.CancelOrder(ctx, id, reason)
	if err != nil {
		fatal("Cancel failed: %v", err)
	}
	printSuccess("Order %s is %s", o.ID, o.Status)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printSession(s model.Session) {
	if quiet {
		if s.User != nil {
			fmt.Println(s.User.Email)
		}
		return
	}
	if !s.Authenticated || s.User == nil {
		printInfo("Not signed in")
		return
	}
	fmt.Printf("  %s%s%s <%s>\n", colorBold, s.User.Name, colorReset, s.User.Email)
}

func printCart(c model.Cart) {
	if quiet {
		fmt.Println(c.ItemCount())
		return
	}
	if c.IsEmpty() {
		printInfo("Cart is empty")
		return
	}
	for _, l := range c.Lines {
		fmt.Printf("  %s%-26s%s %3d × %8s = %9s\n",
			colorCyan, l.Product.ID, colorReset, l.Quantity, "$"+l.UnitPrice.String(), "$"+l.UnitPrice.Mul(l.Quantity).String())
	}
	fmt.Printf("  %sSubtotal%s %s  %sTax%s %s  %sTotal%s %s$%s%s\n",
		colorGray, colorReset, "$"+c.Subtotal.String(),
		colorGray, colorReset, "$"+c.Tax.String(),
		colorGray, colorReset, colorBold, c.Total.String(), colorReset)
}

func printWishlist(wl *model.Wishlist) {
	if wl == nil || len(wl.Entries) == 0 {
		printInfo("Wishlist is empty")
		return
	}
	for _, e := range wl.Entries {
		fmt.Printf("  %s%s%s\n", colorCyan, e.Product.ID(), colorReset)
	}
}

func printOrder(o model.Order) {
	if quiet {
		fmt.Println(o.ID)
		return
	}
	statusColor := colorGreen
	if o.Status == model.OrderCancelled {
		statusColor = colorYellow
	}
	fmt.Printf("  %s%s%s  %s%s%s  $%s  %s\n",
		colorCyan, o.ID, colorReset, statusColor, o.Status, colorReset, o.Total.String(), o.CreatedAt.Format(time.DateOnly))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("  %s\n", data)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
