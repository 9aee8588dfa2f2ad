// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command lusl packs a directory into a LUSL archive and unpacks
// archives back into directory trees.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"go.chromium.org/luci/common/logging/gologger"

	"github.com/altair823/LUSL/lsl"
)

var (
	flagPassword string
	flagCompress bool
	flagQuiet    bool
)

func commonOptions(progress chan<- string) []lsl.Option {
	opts := []lsl.Option{lsl.WithCompression(flagCompress)}
	if flagPassword != "" {
		opts = append(opts, lsl.WithEncryption(flagPassword))
	}
	if progress != nil {
		opts = append(opts, lsl.WithProgress(progress))
	}
	return opts
}

// watchProgress renders archiver progress messages until ch closes.
func watchProgress(ch <-chan string, total int, desc string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		for msg := range ch {
			bar.Describe(msg)
			bar.Add(1)
		}
		bar.Finish()
	}()
	return done
}

func packCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <dir> <archive>",
		Short: "serialize a directory tree into an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := gologger.StdConfig.Use(context.Background())

			var progress chan string
			if !flagQuiet {
				progress = make(chan string, 64)
			}
			s, err := lsl.NewSerializer(args[0], args[1], commonOptions(progress)...)
			if err != nil {
				return err
			}

			var done <-chan struct{}
			if progress != nil {
				done = watchProgress(progress, s.FileCount(), "packing")
			}
			err = s.Serialize(ctx)
			if progress != nil {
				close(progress)
				<-done
			}
			if err != nil {
				return err
			}
			fmt.Printf("packed %d files into %s\n", s.FileCount(), args[1])
			return nil
		},
	}
}

func unpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <archive> <dir>",
		Short: "restore an archive into a directory tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := gologger.StdConfig.Use(context.Background())

			var progress chan string
			if !flagQuiet {
				progress = make(chan string, 64)
			}
			d := lsl.NewDeserializer(args[0], args[1], commonOptions(progress)...)

			var done <-chan struct{}
			if progress != nil {
				done = watchProgress(progress, -1, "unpacking")
			}
			err := d.Deserialize(ctx)
			if progress != nil {
				close(progress)
				<-done
			}
			if err != nil {
				return err
			}
			fmt.Printf("unpacked %s into %s\n", args[0], args[1])
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "lusl",
		Short:         "LUSL directory archiver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagPassword, "password", "p", "", "encrypt/decrypt payloads with this password")
	root.PersistentFlags().BoolVarP(&flagCompress, "compress", "c", false, "compress payloads")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress the progress bar")
	root.AddCommand(packCmd(), unpackCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lusl: %s\n", err)
		os.Exit(1)
	}
}
