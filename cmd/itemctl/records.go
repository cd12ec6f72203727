/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/suparena/itemstore/model"
	"github.com/suparena/itemstore/storagemodels"
)

func newKeysCmd(a *app) *cobra.Command {
	var prefix string
	var depth int

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.open(cmd)
			if err != nil {
				return err
			}

			keys, err := streamKeys(cmd, store.Adapter().KeyStream(cmd.Context(),
				storagemodels.WithPrefix(prefix),
				storagemodels.WithMaxDepth(depth),
			))
			if err != nil {
				return err
			}
			for _, key := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), key); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list keys below this prefix")
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum number of segments below the prefix (0: unlimited)")

	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Count the stored items of every model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.open(cmd)
			if err != nil {
				return err
			}

			keys, err := streamKeys(cmd, store.Adapter().KeyStream(cmd.Context(),
				storagemodels.WithPrefix("models"),
				storagemodels.WithMaxDepth(3),
			))
			if err != nil {
				return err
			}

			counts := map[string]int{}
			for _, key := range keys {
				if name := model.KeyToModelName(key); name != "" {
					counts[name]++
				}
			}
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, counts[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// streamKeys drains ch into a sorted slice.
func streamKeys(cmd *cobra.Command, ch <-chan storagemodels.KeyResult) ([]string, error) {
	var keys []string
	for r := range ch {
		if r.Error != nil {
			return nil, r.Error
		}
		keys = append(keys, r.Key)
	}
	if err := cmd.Context().Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the record stored at key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd)
			if err != nil {
				return err
			}
			rec, err := store.Adapter().Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> [json]",
		Short: "Write a record, read from the argument or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 2 {
				data = []byte(args[1])
			} else {
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			var rec storagemodels.Record
			if err := dec.Decode(&rec); err != nil {
				return fmt.Errorf("invalid record: %w", err)
			}
			if rec == nil {
				return fmt.Errorf("invalid record: expected a JSON object")
			}

			store, err := a.open(cmd)
			if err != nil {
				return err
			}
			_, err = store.Adapter().Write(cmd.Context(), args[0], rec)
			return err
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Remove a key and everything nested below it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return fmt.Errorf("refusing to remove the empty key")
			}
			store, err := a.open(cmd)
			if err != nil {
				return err
			}
			_, err = store.Adapter().Remove(cmd.Context(), args[0])
			return err
		},
	}
}

func newPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path <key>",
		Short: "Print the adapter path of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd)
			if err != nil {
				return err
			}
			path, err := store.Adapter().KeyToPath(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func newKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "key <path>",
		Short: "Print the key of an adapter path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.open(cmd)
			if err != nil {
				return err
			}
			key, err := store.Adapter().PathToKey(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}
