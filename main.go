package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/metrico/healpipe/config"
	handlers "github.com/metrico/healpipe/handler"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/router"
	"github.com/metrico/healpipe/source"
	"github.com/metrico/healpipe/utils"
	"github.com/metrico/healpipe/worker"
)

// initFlags initializes the command line flags
func initFlags() *model.CommandLineFlags {
	appFlags := &model.CommandLineFlags{}
	appFlags.Host = flag.String("host", "", "API host. Overrides server.host")
	appFlags.Port = flag.String("port", "", "API port. Overrides server.port")
	appFlags.Config = flag.String("config", "", "Path to the service configuration file")
	appFlags.Check = flag.Bool("check", false, "Build every catalog dataset once and exit")
	flag.Parse()
	return appFlags
}

func main() {
	appFlags := initFlags()
	config.InitConfig(*appFlags.Config)
	cfg := config.Config
	if *appFlags.Host != "" {
		cfg.Server.Host = *appFlags.Host
	}
	if *appFlags.Port != "" {
		cfg.Server.Port = *appFlags.Port
	}
	utils.SetLogger(utils.NewTextLogger(cfg.LogLevel))

	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		log.Fatalf("failed to load catalog %s: %v", cfg.Catalog, err)
	}
	pool := worker.NewPool(cfg.Workers, worker.SourceOpener(source.Options{
		Engine:    cfg.Source.Engine,
		BatchSize: cfg.Source.BatchSize,
		S3:        cfg.S3,
	}))

	if *appFlags.Check {
		if err := check(pool, catalog); err != nil {
			log.Fatalf("catalog check failed: %v", err)
		}
		return
	}

	r := router.NewRouter()
	handlers.Init(r, &handlers.Handlers{Catalog: catalog, Pool: pool})
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	utils.Logger().Info("healpipe API running", "addr", addr, "datasets", len(catalog.Datasets))
	fmt.Printf("healpipe API Running: %s\n", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		panic(err)
	}
}

// check builds every dataset of the catalog in parallel.
func check(pool *worker.Pool, catalog *config.Catalog) error {
	reqs := make([]worker.Request, len(catalog.Datasets))
	for i, ds := range catalog.Datasets {
		reqs[i] = worker.NewRequest(ds)
	}
	res, err := pool.FetchAll(context.Background(), reqs)
	if err != nil {
		return err
	}
	for i, r := range res {
		fmt.Printf("%s: %d rows\n", catalog.Datasets[i].Name, r.Data.NumRows())
		r.Release()
	}
	return nil
}
