package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/and161185/promptvault/internal/access"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/service"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "pv %s (%s)\n", version, buildDate)
		},
	}
}

// ---- session ----

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with a delegation token (PV_TOKEN or prompt)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			who, err := a.mp.Login(cmd.Context())
			if err != nil {
				return err
			}
			if who.IsAnonymous() {
				fmt.Fprintln(a.out, "login cancelled")
				return nil
			}
			fmt.Fprintln(a.out, who)
			if a.mp.Stage() == service.StageBrowseOnly {
				fmt.Fprintln(a.errOut, "warning: no ledger profile; browsing only")
			}
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mp.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity and profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := struct {
				Identity   string       `json:"identity"`
				ExpiresAt  string       `json:"expires_at,omitempty"`
				BrowseOnly bool         `json:"browse_only,omitempty"`
				Profile    *profileView `json:"profile,omitempty"`
			}{Identity: a.mp.Current().String(), BrowseOnly: a.mp.BrowseOnly()}
			if exp := a.session.ExpiresAt(); !exp.IsZero() {
				out.ExpiresAt = exp.Format("2006-01-02T15:04:05Z07:00")
			}
			if p, ok := a.mp.View().Profile(); ok {
				pv := toProfileView(p)
				out.Profile = &pv
			}
			printJSON(a.out, out)
			return nil
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <display-name>",
		Short: "Change your display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.mp.Mutations().UpdateDisplayName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJSON(a.out, toProfileView(p))
			return nil
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show your payment ledger balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.mp.Balance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, b)
			return nil
		},
	}
}

// ---- browsing ----

func (a *app) verdict(it model.Item) access.Verdict {
	return access.Evaluate(a.mp.Current(), it, a.mp.View().Purchased())
}

func (a *app) printItems(items []model.Item) {
	printJSON(a.out, itemViews(a.mp.Current(), a.mp.View().Purchased(), items))
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List public items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printItems(a.mp.View().Snapshot().PublicItems)
			return nil
		},
	}
}

func (a *app) mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List items you authored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.mp.Current().IsAnonymous() {
				return errs.ErrNotAuthenticated
			}
			a.printItems(a.mp.View().Snapshot().MyItems)
			return nil
		},
	}
}

func (a *app) purchasedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purchased",
		Short: "List items you bought",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.mp.Current().IsAnonymous() {
				return errs.ErrNotAuthenticated
			}
			a.printItems(a.mp.View().Snapshot().MyPurchased)
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item and what you may do with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			it, v, err := a.mp.Evaluate(cmd.Context(), id)
			if err != nil {
				return err
			}
			it.Content = ""
			printJSON(a.out, toItemView(it, v))
			return nil
		},
	}
}

func (a *app) contentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "content <id>",
		Short: "Print an item's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			s, err := a.mp.Content(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, s)
			return nil
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search public items by text and category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			var cat *model.Category
			if category != "" {
				c, err := parseCategory(category)
				if err != nil {
					return err
				}
				cat = &c
			}
			items, err := a.mp.Search(cmd.Context(), text, cat)
			if err != nil {
				return err
			}
			a.printItems(items)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "restrict to a category")
	return cmd
}

// ---- mutations ----

func (a *app) itemCmd(use, short string, do func(cmd *cobra.Command, id model.ItemID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			if err := do(cmd, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func (a *app) buyCmd() *cobra.Command {
	return a.itemCmd("buy", "Purchase an item", func(cmd *cobra.Command, id model.ItemID) error {
		return a.mp.Mutations().Purchase(cmd.Context(), id)
	})
}

func (a *app) likeCmd() *cobra.Command {
	return a.itemCmd("like", "Like an item; liking an item you already like succeeds", func(cmd *cobra.Command, id model.ItemID) error {
		return a.mp.Mutations().Like(cmd.Context(), id)
	})
}

func (a *app) unlikeCmd() *cobra.Command {
	return a.itemCmd("unlike", "Remove your like; unliking an item you never liked succeeds", func(cmd *cobra.Command, id model.ItemID) error {
		return a.mp.Mutations().Unlike(cmd.Context(), id)
	})
}

func (a *app) deleteCmd() *cobra.Command {
	return a.itemCmd("delete", "Delete an item you authored", func(cmd *cobra.Command, id model.ItemID) error {
		return a.mp.Mutations().DeleteItem(cmd.Context(), id)
	})
}

func (a *app) rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <id> <1-5>",
		Short: "Rate an item you bought",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			r, err := parseRating(args[1])
			if err != nil {
				return err
			}
			if err := a.mp.Mutations().Rate(cmd.Context(), id, r); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

// itemFlags are shared by create and update.
type itemFlags struct {
	title, description, content, contentFile string
	category, price                          string
	tags                                     []string
	premium, public                          bool
}

func (f *itemFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "title")
	fl.StringVar(&f.description, "description", "", "description")
	fl.StringVar(&f.content, "content", "", "content")
	fl.StringVar(&f.contentFile, "content-file", "", "read content from file ('-' for stdin)")
	fl.StringVar(&f.category, "category", "", "category")
	fl.StringVar(&f.price, "price", "0", "price in major units")
	fl.StringSliceVar(&f.tags, "tags", nil, "comma-separated tags")
	fl.BoolVar(&f.premium, "premium", false, "mark as premium")
	fl.BoolVar(&f.public, "public", false, "content visible without purchase")
}

func (a *app) readContent(f *itemFlags) (string, error) {
	if f.contentFile == "" {
		return f.content, nil
	}
	var (
		b   []byte
		err error
	)
	if f.contentFile == "-" {
		b, err = io.ReadAll(a.in)
	} else {
		b, err = os.ReadFile(f.contentFile)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(b), nil
}

func (a *app) createCmd() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := a.readContent(&f)
			if err != nil {
				return err
			}
			cat, err := parseCategory(f.category)
			if err != nil {
				return err
			}
			price, err := parsePrice(f.price)
			if err != nil {
				return err
			}
			it, err := a.mp.Mutations().CreateItem(cmd.Context(), model.CreateItem{
				Title:       f.title,
				Description: f.description,
				Content:     content,
				Category:    cat,
				Tags:        f.tags,
				Price:       price,
				IsPremium:   f.premium,
				IsPublic:    f.public,
			})
			if err != nil {
				return err
			}
			printJSON(a.out, toItemView(it, a.verdict(it)))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an item you authored; only given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			u, err := a.buildUpdate(cmd, id, &f)
			if err != nil {
				return err
			}
			it, err := a.mp.Mutations().UpdateItem(cmd.Context(), u)
			if err != nil {
				return err
			}
			printJSON(a.out, toItemView(it, a.verdict(it)))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) buildUpdate(cmd *cobra.Command, id model.ItemID, f *itemFlags) (model.UpdateItem, error) {
	fl := cmd.Flags()
	u := model.UpdateItem{ID: id}
	if fl.Changed("title") {
		u.Title = &f.title
	}
	if fl.Changed("description") {
		u.Description = &f.description
	}
	if fl.Changed("content") || fl.Changed("content-file") {
		c, err := a.readContent(f)
		if err != nil {
			return model.UpdateItem{}, err
		}
		u.Content = &c
	}
	if fl.Changed("category") {
		c, err := parseCategory(f.category)
		if err != nil {
			return model.UpdateItem{}, err
		}
		u.Category = &c
	}
	if fl.Changed("price") {
		p, err := parsePrice(f.price)
		if err != nil {
			return model.UpdateItem{}, err
		}
		u.Price = &p
	}
	if fl.Changed("tags") {
		u.Tags = append([]string{}, f.tags...)
	}
	if fl.Changed("premium") {
		u.IsPremium = &f.premium
	}
	if fl.Changed("public") {
		u.IsPublic = &f.public
	}
	return u, nil
}
