package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mediakit/pkg/file"
	"github.com/dmitrymomot/mediakit/pkg/logger"
	"github.com/dmitrymomot/mediakit/pkg/media"
	"github.com/dmitrymomot/mediakit/pkg/pg"
)

var errNoMigrations = errors.New("record store has no schema to migrate")

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply the record store schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pg.Up), string(pg.Down), string(pg.Status)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := pg.Up
			if len(args) == 1 {
				dir = pg.Direction(args[0])
			}
			return a.withBackend(cmd, func(b *backend) error {
				if b.migrate == nil {
					return fmt.Errorf("%w: %s", errNoMigrations, a.settings.Records)
				}
				if err := b.migrate(cmd.Context(), dir); err != nil {
					return err
				}
				a.log.InfoContext(cmd.Context(), "migration finished", "direction", string(dir), "records", a.settings.Records)
				return nil
			})
		},
	}
}

// attrFlags binds the editable metadata flags shared by attach, update and clone.
type attrFlags struct {
	name, alt, title string
	weight           int
}

func (f *attrFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	cmd.Flags().StringVar(&f.alt, "alt", "", "alternative text")
	cmd.Flags().StringVar(&f.title, "title", "", "title")
	cmd.Flags().IntVar(&f.weight, "weight", 0, "ordering weight, defaults to the group size")
}

// attrs returns only the flags set on the command line.
func (f *attrFlags) attrs(cmd *cobra.Command) media.Attrs {
	var attrs media.Attrs
	if cmd.Flags().Changed("name") {
		attrs.Name = &f.name
	}
	if cmd.Flags().Changed("alt") {
		attrs.Alt = &f.alt
	}
	if cmd.Flags().Changed("title") {
		attrs.Title = &f.title
	}
	if cmd.Flags().Changed("weight") {
		attrs.Weight = &f.weight
	}
	return attrs
}

func newAttachCmd(a *app) *cobra.Command {
	var (
		group  string
		single bool
		key    string
		af     attrFlags
	)

	cmd := &cobra.Command{
		Use:   "attach OWNER_TYPE OWNER_ID [FILE...]",
		Short: "Attach local files, or an object already in storage with --key",
		Example: `  mediactl attach post 42 cover.jpg --group cover --single
  mediactl attach post 42 --key incoming/report.pdf --title "Annual report"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := media.Owner(args[0], args[1])
			paths := args[2:]
			if key == "" && len(paths) == 0 {
				return errors.New("nothing to attach: pass files or --key")
			}
			if key != "" && len(paths) > 0 {
				return errors.New("--key cannot be combined with files")
			}

			mode := media.Multiple
			if single {
				mode = media.Single
			}
			attrs := af.attrs(cmd)

			p, err := newPrinter(a.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			return a.withBackend(cmd, func(b *backend) error {
				if key != "" {
					rf := media.RemoteFile{Key: key, ContentType: mime.TypeByExtension(filepath.Ext(key))}
					rec, err := b.store.ImportFromRemoteKey(cmd.Context(), owner, rf, group, mode, attrs)
					if err != nil {
						return err
					}
					return p.record(viewOf(b.store, *rec))
				}

				views := make([]recordView, 0, len(paths))
				for i, path := range paths {
					m := mode
					if i > 0 {
						m = media.Multiple
					}
					rec, err := attachFile(cmd, b.store, owner, path, group, m, attrs)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					a.log.DebugContext(cmd.Context(), "attached", logger.MediaID(rec.ID), logger.Path(rec.Filename))
					views = append(views, viewOf(b.store, *rec))
				}
				return p.records(views)
			})
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "attachment group, defaults to MEDIA_DEFAULT_GROUP")
	cmd.Flags().BoolVar(&single, "single", false, "replace the group's existing attachments")
	cmd.Flags().StringVar(&key, "key", "", "import an object already stored under this key")
	af.bind(cmd)
	return cmd
}

func attachFile(cmd *cobra.Command, store *media.Store, owner media.OwnerRef, path, group string, mode media.Mode, attrs media.Attrs) (*media.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	mimeType, err := file.DetectMIMEType(f)
	if err != nil {
		return nil, err
	}

	return store.Save(cmd.Context(), owner, media.Upload{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
		Body:     f,
	}, group, mode, attrs)
}

func newListCmd(a *app) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:     "ls OWNER_TYPE OWNER_ID",
		Aliases: []string{"list"},
		Short:   "List an owner's attachments ordered by weight",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(a.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(b *backend) error {
				recs, err := b.store.List(cmd.Context(), media.Owner(args[0], args[1]), group)
				if err != nil {
					return err
				}
				views := make([]recordView, 0, len(recs))
				for _, rec := range recs {
					views = append(views, viewOf(b.store, rec))
				}
				return p.records(views)
			})
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "only this group")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var af attrFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change name, alt, title or weight of an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := af.attrs(cmd)
			if attrs == (media.Attrs{}) {
				return errors.New("nothing to update: pass --name, --alt, --title or --weight")
			}
			p, err := newPrinter(a.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(b *backend) error {
				if err := b.store.UpdateMetadata(cmd.Context(), args[0], attrs); err != nil {
					return err
				}
				rec, err := b.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return p.record(viewOf(b.store, *rec))
			})
		},
	}
	af.bind(cmd)
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID...",
		Short: "Remove attachments and their files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(b *backend) error {
				var errs []error
				for _, id := range args {
					deleted, err := b.store.DeleteByID(cmd.Context(), id)
					switch {
					case err != nil:
						errs = append(errs, fmt.Errorf("%s: %w", id, err))
					case !deleted:
						errs = append(errs, fmt.Errorf("%s: %w", id, media.ErrNotFound))
					default:
						fmt.Fprintln(cmd.OutOrStdout(), "removed", id)
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "purge OWNER_TYPE OWNER_ID",
		Short: "Remove every attachment of an owner, or of one group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(b *backend) error {
				n, err := b.store.Delete(cmd.Context(), media.Owner(args[0], args[1]), group)
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", n)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "only this group")
	return cmd
}

func newCloneCmd(a *app) *cobra.Command {
	var (
		copyBlob bool
		group    string
		af       attrFlags
	)
	cmd := &cobra.Command{
		Use:   "clone ID OWNER_TYPE OWNER_ID",
		Short: "Attach an existing attachment to another owner",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(a.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withBackend(cmd, func(b *backend) error {
				src, err := b.store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rec, err := b.store.Clone(cmd.Context(), *src, media.Owner(args[1], args[2]), media.CloneOptions{
					CopyBlob: copyBlob,
					Group:    group,
					Attrs:    af.attrs(cmd),
				})
				if err != nil {
					return err
				}
				return p.record(viewOf(b.store, *rec))
			})
		},
	}
	cmd.Flags().BoolVar(&copyBlob, "copy", false, "duplicate the file instead of sharing it")
	cmd.Flags().StringVarP(&group, "group", "g", "", "target group, defaults to the source group")
	af.bind(cmd)
	return cmd
}
