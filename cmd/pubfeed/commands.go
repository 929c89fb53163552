package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/pubfeed"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Atom feed over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := pubfeed.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			log.Printf("pubfeed: serving %s on %s", app.Config.Feed.AtomPath, app.Config.Addr)
			return app.Start(cmd.Context())
		},
	}
}

func newRenderCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Generate the feed once and write it to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := pubfeed.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			posts, err := app.Source().ListPublished(cmd.Context(), app.Generator.Config().MaxItems)
			if err != nil {
				return fmt.Errorf("load posts: %w", err)
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = io.WriteString(w, app.Generator.GenerateFeed(posts))
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the feed to this file")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <posts.yaml>",
		Short: "Load posts from a YAML file into the SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabasePath == "" {
				return errors.New("import needs --database")
			}
			posts, err := pubfeed.LoadPosts(args[0])
			if err != nil {
				return err
			}
			store, err := pubfeed.NewStore(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()
			for _, p := range posts {
				if err := store.SavePost(p); err != nil {
					return fmt.Errorf("save %s: %w", p.Slug, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d posts into %s\n", len(posts), cfg.DatabasePath)
			return nil
		},
	}
}
