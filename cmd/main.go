package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/alitto/pond"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	lst "github.com/betagouv/new-aglae-data-converter"
	"github.com/betagouv/new-aglae-data-converter/search"
)

// write_datasets writes every emitted histogram cube into a TileDB group
// alongside the conversion metadata.
func write_datasets(result *lst.ParsingResult, lst_uri, config_uri, grp_uri string) error {
	var (
		config *tiledb.Config
		err    error
	)

	// get a generic config if no path provided
	if config_uri == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(config_uri)
	}
	if err != nil {
		return err
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return err
	}
	defer ctx.Free()

	grp, err := tiledb.NewGroup(ctx, grp_uri)
	if err != nil {
		return err
	}
	defer grp.Free()

	err = grp.Create()
	if err != nil {
		return errors.Join(err, errors.New("Error creating tiledb group"))
	}

	err = grp.Open(tiledb.TILEDB_WRITE)
	if err != nil {
		return errors.Join(err, errors.New("Error opening tiledb group in write mode"))
	}

	log.Info("Writing conversion information to group metadata")
	jsn, err := lst.JsonIndentDumps(result.Metadata(lst_uri))
	if err != nil {
		return err
	}
	err = grp.PutMetadata("Conversion-Information", jsn)
	if err != nil {
		return err
	}

	datasets := append(result.Datasets, result.Computed_datasets...)
	for _, dataset := range datasets {
		log.Info("Writing dataset", "name", dataset.Name)

		array_name := dataset.Name + ".tiledb"
		out_uri := filepath.Join(grp_uri, array_name)

		err = dataset.ToTileDB(out_uri, ctx)
		if err != nil {
			return err
		}

		err = grp.AddMember(array_name, dataset.Name, true)
		if err != nil {
			return errors.Join(err, errors.New("Error adding dataset to group"))
		}
	}

	return nil
}

// convert_lst handles the conversion process for a single LST file.
func convert_lst(lst_uri, detectors_uri, config_uri, outdir_uri string, in_memory, metadata_only bool) error {
	dir, file := filepath.Split(lst_uri)
	if outdir_uri == "" {
		outdir_uri = dir
	}
	stem := strings.TrimSuffix(file, filepath.Ext(file))

	log.Info("Processing LST", "uri", lst_uri)

	config, err := lst.LoadLstConfig(detectors_uri, config_uri)
	if err != nil {
		return err
	}

	src, err := lst.OpenLst(lst_uri, config_uri, in_memory)
	if err != nil {
		return err
	}
	defer src.Close()

	// advisory progress observations emitted at every timer event
	progress := make(chan int64, 1)
	go func() {
		for offset := range progress {
			log.Debug("Streaming", "uri", lst_uri, "offset", offset)
		}
	}()

	result, err := src.Parse(&config, progress)
	close(progress)
	if err != nil {
		return err
	}

	log.Info("Writing metadata")
	out_uri := filepath.Join(outdir_uri, stem+"-metadata.json")
	_, err = lst.WriteJson(out_uri, config_uri, result.Metadata(lst_uri))
	if err != nil {
		return err
	}

	if !metadata_only {
		grp_uri := filepath.Join(outdir_uri, stem+".tiledb")
		err = write_datasets(result, lst_uri, config_uri, grp_uri)
		if err != nil {
			return err
		}
	}

	log.Info("Finished LST", "uri", lst_uri)

	return nil
}

// convert_lst_list is responsible for submitting a list of LST files to a processing pool
// that converts each LST file. The processing pool uses 2 * n_CPUs workers to spread the
// work across.
func convert_lst_list(uri, detectors_uri, config_uri, outdir_uri string, in_memory, metadata_only bool) error {
	log.Info("Searching uri", "uri", uri)
	items, err := search.FindLst(uri, config_uri)
	if err != nil {
		return err
	}
	log.Info("Number of LSTs to process", "count", len(items))

	// Create a context that will be cancelled when the user presses Ctrl+C (process receives termination signal).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// fixed pool
	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
	defer pool.StopAndWait()

	for _, item := range items {
		item_uri := item.Uri
		pool.Submit(func() {
			err := convert_lst(item_uri, detectors_uri, config_uri, outdir_uri, in_memory, metadata_only)
			if err != nil {
				log.Error("Conversion failed", "uri", item_uri, "err", err)
			}
		})
	}

	return nil
}

func main() {
	app := &cli.App{
		Commands: []*cli.Command{
			&cli.Command{
				Name: "convert",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "lst-uri",
						Usage: "URI or pathname to an LST file.",
					},
					&cli.StringFlag{
						Name:  "detectors-uri",
						Usage: "URI or pathname to a YAML detector catalog.",
					},
					&cli.StringFlag{
						Name:  "config-uri",
						Usage: "URI or pathname to a TileDB config file.",
					},
					&cli.StringFlag{
						Name:  "outdir-uri",
						Usage: "URI or pathname to an output directory.",
					},
					&cli.BoolFlag{
						Name:  "in-memory",
						Usage: "Read the entire contents of an LST file into memory before processing.",
					},
					&cli.BoolFlag{
						Name:  "metadata-only",
						Usage: "Only decode and export metadata relating to the LST file.",
					},
				},
				Action: func(cCtx *cli.Context) error {
					err := convert_lst(cCtx.String("lst-uri"), cCtx.String("detectors-uri"), cCtx.String("config-uri"), cCtx.String("outdir-uri"), cCtx.Bool("in-memory"), cCtx.Bool("metadata-only"))
					return err
				},
			},
			&cli.Command{
				Name: "convert-trawl",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "uri",
						Usage: "URI or pathname to a directory containing lst files.",
					},
					&cli.StringFlag{
						Name:  "detectors-uri",
						Usage: "URI or pathname to a YAML detector catalog.",
					},
					&cli.StringFlag{
						Name:  "config-uri",
						Usage: "URI or pathname to a TileDB config file.",
					},
					&cli.StringFlag{
						Name:  "outdir-uri",
						Usage: "URI or pathname to an output directory.",
					},
					&cli.BoolFlag{
						Name:  "in-memory",
						Usage: "Read the entire contents of an LST file into memory before processing.",
					},
					&cli.BoolFlag{
						Name:  "metadata-only",
						Usage: "Only decode and export metadata relating to the LST files.",
					},
				},
				Action: func(cCtx *cli.Context) error {
					err := convert_lst_list(cCtx.String("uri"), cCtx.String("detectors-uri"), cCtx.String("config-uri"), cCtx.String("outdir-uri"), cCtx.Bool("in-memory"), cCtx.Bool("metadata-only"))
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
