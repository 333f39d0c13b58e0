// Copyright 2025 Mamba Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jjerphan/mamba/pkg/conda/repodata"
	"github.com/jjerphan/mamba/pkg/conda/solver"
)

func solve() *cobra.Command {
	var (
		configFile   string
		constrains   []string
		packageTypes string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Resolve match specs into an install plan",
		Long: heredoc.Doc(`
			Resolve a set of conda match specifications against one or more
			local repodata indexes and print the resulting install plan.

			Channels, platforms and virtual packages come from a YAML
			environment file; the specs to install are the arguments.
		`),
		Example: heredoc.Doc(`
			mamba solve --config env.yaml "scikit-learn >=1.5"
			mamba solve --config env.yaml --constrain "numpy <2.0" scipy
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parsePackageTypes(packageTypes)
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			req := solver.Request{Specs: args, Constrains: constrains}
			return SolveCmd(cmd.Context(), cfg, types, req, jsonOutput, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to the environment YAML file")
	cmd.Flags().StringSliceVar(&constrains, "constrain", nil, "extra specs that restrict without installing")
	cmd.Flags().StringVar(&packageTypes, "package-types", "conda-or-tar-bz2", "artifacts to consider: conda-or-tar-bz2, conda-only or tar-bz2-only")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the plan as JSON")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func parsePackageTypes(s string) (repodata.PackageTypes, error) {
	switch s {
	case "conda-or-tar-bz2":
		return repodata.CondaOrElseTarBz2, nil
	case "conda-only":
		return repodata.CondaOnly, nil
	case "tar-bz2-only":
		return repodata.TarBz2Only, nil
	}
	return 0, fmt.Errorf("unknown package types %q", s)
}

type loadedIndex struct {
	channel  Channel
	platform string
	rd       *repodata.Repodata
}

// SolveCmd loads every channel/platform index, builds the database and
// prints the plan for the request.
func SolveCmd(ctx context.Context, cfg *Config, types repodata.PackageTypes, req solver.Request, jsonOutput bool, out io.Writer) error {
	log := clog.FromContext(ctx)

	// loading and parsing the indexes is the parallel part; interning
	// below is single threaded
	indexes := make([]*loadedIndex, len(cfg.Channels)*len(cfg.Platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range cfg.Channels {
		for j, platform := range cfg.Platforms {
			ch, platform := ch, platform
			slot := i*len(cfg.Platforms) + j
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rd, err := loadIndex(ch.Path, platform)
				if err != nil {
					if errors.Is(err, repodata.ErrNotFound) {
						// a channel need not publish every platform
						log.Warnf("channel %q has no %s index", ch.Name, platform)
						return nil
					}
					return err
				}
				indexes[slot] = &loadedIndex{channel: ch, platform: platform, rd: rd}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	db := solver.NewDatabase(
		solver.WithPlatforms(cfg.Platforms...),
		solver.WithChannelAlias(cfg.ChannelAlias),
	)
	total := 0
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		repoURL := strings.TrimSuffix(idx.channel.URL, "/") + "/" + idx.platform
		added, err := db.AddRepodata(ctx, idx.rd, idx.channel.Name, repoURL, types)
		if err != nil {
			return err
		}
		total += added
	}
	if total == 0 {
		return fmt.Errorf("no package records loaded")
	}
	log.Infof("loaded %d records from %d channels", total, len(cfg.Channels))

	for _, vp := range cfg.VirtualPackages {
		if _, err := db.AddVirtualPackage(ctx, vp.Name, vp.Version, vp.Build); err != nil {
			return err
		}
	}
	db.WarmBestVersionCache()

	plan, err := solver.NewSolver(db).Solve(ctx, req)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	for _, record := range plan {
		fmt.Fprintf(out, "%s/%s::%s\n", record.Channel, record.Subdir, record.String())
	}
	return nil
}

// loadIndex prefers the plain index and falls back to the zstd one.
func loadIndex(root, platform string) (*repodata.Repodata, error) {
	rd, err := repodata.Load(filepath.Join(root, platform, "repodata.json"))
	if errors.Is(err, repodata.ErrNotFound) {
		return repodata.Load(filepath.Join(root, platform, "repodata.json.zst"))
	}
	return rd, err
}
