package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lachlan2k/vitrine/internal/api"
	"github.com/lachlan2k/vitrine/internal/app"
	"github.com/lachlan2k/vitrine/internal/cart"
	"github.com/lachlan2k/vitrine/internal/session"
	"github.com/lachlan2k/vitrine/internal/webserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront shell HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, done, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		server := webserver.New(a)
		server.Logger().Infof("Listening on %s", a.Conf.BaseURL)
		return server.Run(cmd.Context())
	},
}

var loginEmail, loginSenha string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in against the backend and store the session",
	RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
		user, err := a.SignIn(ctx, loginEmail, loginSenha)
		var rejected *api.LoginRejected
		if errors.As(err, &rejected) {
			return fmt.Errorf("login failed (%s)", rejected.Kind)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Logged in as %s (%s)\n", user.Name, user.Role)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
		if err := a.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Restore the stored session and show who it belongs to",
	RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
		snap := a.Auth.Snapshot()
		if snap.State != session.StateLoggedIn {
			fmt.Fprintln(out, "Not logged in")
			return nil
		}

		u := snap.User
		fmt.Fprintf(out, "%s <%s> id=%s role=%s\n", u.Name, u.Email, u.ID, u.Role)
		return nil
	}),
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Inspect and change the cart",
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the cart",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
		printCart(out, a.Cart)
		return nil
	}),
}

var addName, addPhoto string
var addPrice float64
var addQty int

var cartAddCmd = &cobra.Command{
	Use:   "add <productId>",
	Short: "Add a product, or more of one already in the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
			err := a.Cart.Add(ctx, cart.Product{ID: args[0], Name: addName, UnitPrice: addPrice, PhotoRef: addPhoto}, addQty)
			if err != nil {
				return err
			}
			printCart(out, a.Cart)
			return nil
		})(cmd, args)
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <productId>",
	Short: "Remove a product from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
			if err := a.Cart.Remove(ctx, args[0]); err != nil {
				return err
			}
			printCart(out, a.Cart)
			return nil
		})(cmd, args)
	},
}

var cartSetCmd = &cobra.Command{
	Use:   "set <productId> <quantity>",
	Short: "Change how many of a product are in the cart (at least 1)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}

		return withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
			if err := a.Cart.SetQuantity(ctx, args[0], qty); err != nil {
				return err
			}
			printCart(out, a.Cart)
			return nil
		})(cmd, args)
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
		if err := a.Cart.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Cart emptied")
		return nil
	}),
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order with everything in the cart",
	RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer) error {
		if !a.Auth.IsClient() {
			return fmt.Errorf("only logged in customers can check out")
		}

		receipt, err := a.Checkout(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Order %s placed\n", receipt.OrderID)
		return nil
	}),
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginSenha, "senha", "", "Account password")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("senha")

	cartAddCmd.Flags().StringVar(&addName, "name", "", "Product name")
	cartAddCmd.Flags().Float64Var(&addPrice, "price", 0, "Unit price")
	cartAddCmd.Flags().StringVar(&addPhoto, "photo", "", "Photo reference")
	cartAddCmd.Flags().IntVar(&addQty, "qty", 1, "Quantity to add")

	cartCmd.AddCommand(cartListCmd, cartAddCmd, cartRemoveCmd, cartSetCmd, cartClearCmd)
}

func printCart(out io.Writer, c *cart.Store) {
	items := c.Items()
	if len(items) == 0 {
		fmt.Fprintln(out, "Cart is empty")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tUNIT\tSUBTOTAL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.Subtotal())
	}
	fmt.Fprintf(tw, "\t\t\tTOTAL\t%.2f\n", c.Total())
	tw.Flush()
}
