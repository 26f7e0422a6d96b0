package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/sqlevel"
	"github.com/liliang-cn/sqlevel/pkg/level"
	"github.com/liliang-cn/sqlevel/pkg/migrate"
)

var (
	dbPath    string
	table     string
	indexName string
	sublevels []string
	verbose   bool
)

// newRootCmd builds the command tree. Flags are registered afresh on every
// call, which resets the globals above to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sqlevel",
		Short:        "CLI tool for SQLite-backed ordered key-value stores",
		Long:         `A command-line interface for reading and writing an ordered key-value store kept in a SQLite database.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "level.db", "Database file path")
	rootCmd.PersistentFlags().StringVar(&table, "table", "Data", "Backing table name")
	rootCmd.PersistentFlags().StringVar(&indexName, "index", "unique_sub_key_idx", "Unique key index name")
	rootCmd.PersistentFlags().StringSliceVarP(&sublevels, "sublevel", "s", nil, "Sublevel path, outermost first (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newGetCmd(),
		newPutCmd(),
		newDelCmd(),
		newLsCmd(),
		newClearCmd(),
		newBatchCmd(),
		newImportCmd(),
	)
	return rootCmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				val, err := db.Get(ctx, args[0])
				if level.IsNotFound(err) {
					return fmt.Errorf("key %q not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			})
		},
	}
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				return db.Put(ctx, args[0], args[1])
			})
		},
	}
}

func newDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Delete keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				ops := make([]level.Operation, len(args))
				for i, k := range args {
					ops[i] = level.DelOp(k)
				}
				return db.Batch(ctx, ops...)
			})
		},
	}
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List entries in key order",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rangeFromFlags(cmd)
			if err != nil {
				return err
			}
			keysOnly, _ := cmd.Flags().GetBool("keys")
			valuesOnly, _ := cmd.Flags().GetBool("values")
			asJSON, _ := cmd.Flags().GetBool("json")
			if keysOnly && valuesOnly {
				return fmt.Errorf("--keys and --values are mutually exclusive")
			}

			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				it, err := db.Iterator(ctx, r)
				if err != nil {
					return err
				}
				defer it.Close()

				out := cmd.OutOrStdout()
				enc := json.NewEncoder(out)
				for {
					batch, err := it.NextBatch(256)
					if err != nil {
						return err
					}
					if len(batch) == 0 {
						return nil
					}
					for _, e := range batch {
						switch {
						case asJSON && keysOnly:
							err = enc.Encode(e.Key)
						case asJSON && valuesOnly:
							err = enc.Encode(e.Value)
						case asJSON:
							err = enc.Encode(map[string]string{"key": e.Key, "value": e.Value})
						case keysOnly:
							_, err = fmt.Fprintln(out, e.Key)
						case valuesOnly:
							_, err = fmt.Fprintln(out, e.Value)
						default:
							_, err = fmt.Fprintf(out, "%s\t%s\n", e.Key, e.Value)
						}
						if err != nil {
							return err
						}
					}
				}
			})
		},
	}

	addRangeFlags(cmd)
	cmd.Flags().Bool("keys", false, "Print keys only")
	cmd.Flags().Bool("values", false, "Print values only")
	cmd.Flags().Bool("json", false, "Output one JSON document per entry")
	return cmd
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry in a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rangeFromFlags(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				return db.Clear(ctx, r)
			})
		},
	}
	addRangeFlags(cmd)
	return cmd
}

// batchOp is the JSON form of one batch operation.
type batchOp struct {
	Type     string   `json:"type"`
	Key      string   `json:"key"`
	Value    string   `json:"value,omitempty"`
	Sublevel []string `json:"sublevel,omitempty"` // path below the --sublevel target
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file]",
		Short: "Apply a JSON array of operations atomically",
		Long: `Apply a JSON array of operations atomically. Reads stdin when no file is given or file is "-".

Example: [{"type":"put","key":"a","value":"1"},{"type":"del","key":"b","sublevel":["users"]}]`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open batch file: %w", err)
				}
				defer f.Close()
				in = f
			}

			var raw []batchOp
			if err := json.NewDecoder(in).Decode(&raw); err != nil {
				return fmt.Errorf("invalid batch JSON: %w", err)
			}

			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				ops := make([]level.Operation, 0, len(raw))
				for i, op := range raw {
					target, err := descend(db, op.Sublevel)
					if err != nil {
						return fmt.Errorf("operation %d: %w", i, err)
					}
					switch strings.ToLower(op.Type) {
					case "put":
						ops = append(ops, level.PutOp(op.Key, op.Value).In(target))
					case "del":
						ops = append(ops, level.DelOp(op.Key).In(target))
					default:
						return fmt.Errorf("operation %d: unknown type %q", i, op.Type)
					}
				}
				if err := db.Batch(ctx, ops...); err != nil {
					return err
				}
				if verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "applied %d operations\n", len(ops))
				}
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-leveldb <dir>",
		Short: "Copy a LevelDB database into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			strip, _ := cmd.Flags().GetBool("strip-prefix")
			size, _ := cmd.Flags().GetInt("batch-size")

			return withStore(cmd.Context(), func(ctx context.Context, db *level.Level) error {
				n, err := migrate.ImportLevelDB(ctx, db, args[0], migrate.ImportOptions{
					Prefix:      prefix,
					StripPrefix: strip,
					BatchSize:   size,
				})
				if err != nil {
					return fmt.Errorf("import stopped after %d records: %w", n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records from %s\n", n, args[0])
				return nil
			})
		},
	}

	cmd.Flags().String("prefix", "", "Only import source keys starting with this prefix")
	cmd.Flags().Bool("strip-prefix", false, "Remove --prefix from imported keys")
	cmd.Flags().Int("batch-size", migrate.DefaultBatchSize, "Records per transaction")
	return cmd
}

// rangeFromFlags builds a Range from the range flags of cmd. Bounds are
// only set when their flag was given, so an empty bound is expressible.
func rangeFromFlags(cmd *cobra.Command) (level.Range, error) {
	var r level.Range
	flags := cmd.Flags()
	bound := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}

	r.Gt, r.Gte = bound("gt"), bound("gte")
	r.Lt, r.Lte = bound("lt"), bound("lte")
	if (r.Gt != nil && r.Gte != nil) || (r.Lt != nil && r.Lte != nil) {
		return r, fmt.Errorf("set at most one lower and one upper bound")
	}
	r.Prefix, _ = flags.GetString("prefix")
	r.Reverse, _ = flags.GetBool("reverse")
	limit, _ := flags.GetInt("limit")
	r.Limit = level.Max(limit)
	return r, nil
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("gt", "", "Keys greater than")
	cmd.Flags().String("gte", "", "Keys greater than or equal to")
	cmd.Flags().String("lt", "", "Keys less than")
	cmd.Flags().String("lte", "", "Keys less than or equal to")
	cmd.Flags().String("prefix", "", "Keys starting with")
	cmd.Flags().Bool("reverse", false, "Walk keys in descending order")
	cmd.Flags().Int("limit", -1, "Maximum number of entries (-1 for no limit)")
}

// descend walks the sublevel path below db.
func descend(db *level.Level, path []string) (*level.Level, error) {
	cur := db
	for _, name := range path {
		sub, err := cur.Sublevel(name)
		if err != nil {
			return nil, err
		}
		cur = sub
	}
	return cur, nil
}

// withStore opens the store, runs fn against the --sublevel target and
// closes the store.
func withStore(ctx context.Context, fn func(context.Context, *level.Level) error) (err error) {
	if dbPath == "" {
		return fmt.Errorf("database path not specified")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []sqlevel.Option{sqlevel.WithTable(table), sqlevel.WithIndexName(indexName)}
	if verbose {
		opts = append(opts, sqlevel.WithLogger(level.NewStdLogger(level.LevelDebug)))
	}
	db, err := sqlevel.Open(ctx, dbPath, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	target, err := descend(db, sublevels)
	if err != nil {
		return err
	}
	return fn(ctx, target)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
