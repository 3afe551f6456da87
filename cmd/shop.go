/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/cart"
	"github.com/quickcart/apiserver/internal/client"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const redisNamespace = "quickcart"

var (
	registerName     string
	registerEmail    string
	registerPassword string
	registerRole     string
	loginEmail       string
	loginPassword    string
	productsCategory string
	cartAddQuantity  int
)

// shopEnv is what every client command needs: the local store holding the
// cart and session, and an API client carrying the saved token.
type shopEnv struct {
	store cart.Store
	api   *client.Client
	close func()
}

func openShop(cfg config.Config) (*shopEnv, error) {
	var (
		store  cart.Store
		closer = func() {}
	)
	switch cfg.Client.CartStore {
	case config.CartStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Client.RedisAddr,
			Password: cfg.Client.RedisPassword,
			DB:       cfg.Client.RedisDB,
		})
		store = cart.NewRedisStore(rdb, redisNamespace)
		closer = func() { _ = rdb.Close() }
	case config.CartStoreFile, "":
		fs, err := cart.NewFileStore(cfg.Client.CartDir)
		if err != nil {
			return nil, fmt.Errorf("open cart dir: %w", err)
		}
		store = fs
	default:
		return nil, fmt.Errorf("unknown CART_STORE %q", cfg.Client.CartStore)
	}

	api := client.New(cfg.Client.APIURL)
	session, err := client.LoadSession(store)
	switch {
	case err == nil:
		api.SetToken(session.Token)
	case !errors.Is(err, client.ErrNotLoggedIn):
		closer()
		return nil, err
	}
	return &shopEnv{store: store, api: api, close: closer}, nil
}

// withShop runs fn with an opened shopEnv.
func withShop(fn func(cmd *cobra.Command, args []string, env *shopEnv) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := openShop(config.LoadConfig())
		if err != nil {
			return err
		}
		defer env.close()
		return fn(cmd, args, env)
	}
}

// openCart loads the saved cart and prints a badge line after each change.
func openCart(env *shopEnv, out io.Writer) (*cart.Engine, error) {
	engine, err := cart.New(env.store)
	if err != nil {
		return nil, err
	}
	engine.OnChange(func(lines []cart.Line) {
		count := 0
		for _, line := range lines {
			count += line.Quantity
		}
		fmt.Fprintf(out, "cart: %d item(s)\n", count)
	})
	return engine, nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a storefront account",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		user, err := env.api.Register(cmd.Context(), registerName, registerEmail, registerPassword, registerRole)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Email, user.Role)
		return nil
	}),
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session locally",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		resp, err := env.api.Login(cmd.Context(), loginEmail, loginPassword)
		if err != nil {
			return err
		}
		if err := client.SaveSession(env.store, resp.Token, resp.User); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", resp.User.Name)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		if err := client.ClearSession(env.store); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	}),
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the catalog",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		products, err := env.api.ListProducts(cmd.Context(), productsCategory)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
		for _, p := range products {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2))
		}
		return tw.Flush()
	}),
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Manage the local cart",
}

var cartAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Add a product to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		if cartAddQuantity < 1 {
			return errors.New("quantity must be at least 1")
		}
		product, err := env.api.GetProduct(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		engine, err := openCart(env, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		for i := 0; i < cartAddQuantity; i++ {
			if err := engine.Add(product); err != nil {
				return err
			}
		}
		return nil
	}),
}

var cartSetCmd = &cobra.Command{
	Use:   "set <product-id> <quantity>",
	Short: "Set a line's quantity; zero or less removes it",
	Args:  cobra.ExactArgs(2),
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		engine, err := openCart(env, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return engine.SetQuantity(args[0], quantity)
	}),
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <product-id>",
	Short: "Remove a product from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		engine, err := openCart(env, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return engine.Remove(args[0])
	}),
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		engine, err := openCart(env, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return engine.Clear()
	}),
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cart",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		engine, err := cart.New(env.store)
		if err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), engine)
		return nil
	}),
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order for the cart",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		engine, err := openCart(env, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		order, err := client.Checkout(cmd.Context(), env.api, engine)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "order %s placed, total %s\n", order.ID, order.TotalAmount.StringFixed(2))
		return nil
	}),
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List your orders, newest first",
	RunE: withShop(func(cmd *cobra.Command, args []string, env *shopEnv) error {
		orders, err := env.api.MyOrders(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPLACED\tITEMS\tTOTAL")
		for _, o := range orders {
			count := 0
			for _, item := range o.Items {
				count += item.Quantity
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), count, o.TotalAmount.StringFixed(2))
		}
		return tw.Flush()
	}),
}

func printCart(out io.Writer, engine *cart.Engine) {
	lines := engine.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, line := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			line.Product.ID, line.Product.Name, line.Quantity,
			line.Product.Price.StringFixed(2), line.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%s\n", engine.ItemCount(), engine.Total().StringFixed(2))
	_ = tw.Flush()
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password")
	registerCmd.Flags().StringVar(&registerRole, "role", "", "customer (default) or admin")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	productsCmd.Flags().StringVar(&productsCategory, "category", "", "only list this category")
	cartAddCmd.Flags().IntVarP(&cartAddQuantity, "quantity", "q", 1, "how many to add")

	cartCmd.AddCommand(cartAddCmd, cartSetCmd, cartRemoveCmd, cartClearCmd, cartShowCmd)
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, productsCmd, cartCmd, checkoutCmd, ordersCmd)
}
