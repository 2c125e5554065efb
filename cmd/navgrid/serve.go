package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/gridpath/internal/api"
	"github.com/udisondev/gridpath/internal/db"
	"github.com/udisondev/gridpath/internal/leveldata"
	"github.com/udisondev/gridpath/internal/navigation"
	"github.com/udisondev/gridpath/internal/watch"
)

const shutdownTimeout = 5 * time.Second

// openDB connects to PostgreSQL and applies migrations.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	dsn := a.cfg.Database.Conn.DSN()
	database, err := db.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, dsn); err != nil {
		database.Close()
		return nil, err
	}
	slog.Info("database ready", "host", a.cfg.Database.Conn.Host, "dbname", a.cfg.Database.Conn.DBName)
	return database, nil
}

func (a *app) levelsDir(cmd *cli.Command) string {
	if dir := cmd.String("dir"); dir != "" {
		return dir
	}
	return a.cfg.LevelsDir
}

func (a *app) importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "store every level in the levels directory in the database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "levels directory (default: levels_dir from the config)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := a.levelsDir(cmd)
			levels, err := leveldata.LoadDir(ctx, os.DirFS(dir), ".")
			if err != nil {
				return err
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			repo := database.Levels()
			for _, lvl := range levels {
				changed, err := repo.Save(ctx, lvl)
				if err != nil {
					return err
				}
				status := "unchanged"
				if changed {
					status = "stored"
				}
				fmt.Fprintf(a.out, "%s %s\n", lvl.Name, status)
			}
			return nil
		},
	}
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve a level over HTTP: path and move range queries, walkability and units, hot reload, metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "levels directory (default: levels_dir from the config)"},
			&cli.StringFlag{Name: "level", Usage: "level name to serve (default: first by name)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.serve(ctx, a.levelsDir(cmd), cmd.String("level"))
		},
	}
}

// levelSaver stores level declarations.
type levelSaver interface {
	Save(ctx context.Context, lvl *leveldata.Level) (bool, error)
}

// levelStore is the stored level catalogue serve reads from.
type levelStore interface {
	levelSaver
	Load(ctx context.Context, name string) (*leveldata.Level, error)
	List(ctx context.Context) ([]db.LevelRow, error)
}

func (a *app) serve(ctx context.Context, dir, name string) error {
	levels, err := leveldata.LoadDir(ctx, os.DirFS(dir), ".")
	haveDir := err == nil
	if err != nil {
		if !a.cfg.Database.Enabled || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		slog.Warn("levels directory missing, serving stored levels", "dir", dir)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	opts := []navigation.Option{navigation.WithMetrics(navigation.NewMetrics(reg))}
	var apiOpts []api.Option
	if a.cfg.Metrics.Enabled {
		apiOpts = append(apiOpts, api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	var (
		lvl   *leveldata.Level
		saver levelSaver
	)
	if a.cfg.Database.Enabled {
		database, err := a.openDB(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		repo := database.Levels()
		if lvl, err = syncLevels(ctx, repo, levels, name); err != nil {
			return err
		}
		saver = repo
		opts = append(opts, navigation.WithStore(database.Overrides()))
		apiOpts = append(apiOpts, api.WithLevels(repo))
	} else if lvl, err = pickLevel(levels, name); err != nil {
		return err
	}

	svc, err := navigation.NewService(lvl, a.cfg.Planner, opts...)
	if err != nil {
		return err
	}
	restored, err := svc.RestoreOverrides(ctx)
	if err != nil {
		return err
	}
	slog.Info("serving level", "name", lvl.Name, "overrides", restored)

	var w *watch.Watcher
	if a.cfg.Watch.Enabled && haveDir {
		if w, err = watch.New(a.cfg.Watch.Debounce, dir); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewServer(svc, apiOpts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listening", "addr", srv.Addr, "metrics", a.cfg.Metrics.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
		g.Go(func() error {
			for file := range w.Events() {
				reloadFromFile(gctx, svc, saver, dir, file)
			}
			return nil
		})
	}

	return g.Wait()
}

// syncLevels stores the levels found on disk and returns the level to serve,
// read back from the store. An empty name picks the first stored level.
func syncLevels(ctx context.Context, store levelStore, levels []*leveldata.Level, name string) (*leveldata.Level, error) {
	for _, lvl := range levels {
		changed, err := store.Save(ctx, lvl)
		if err != nil {
			return nil, err
		}
		slog.Debug("level synced", "name", lvl.Name, "changed", changed)
	}

	if name == "" {
		rows, err := store.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("no stored levels: %w", db.ErrLevelNotFound)
		}
		name = rows[0].Name
	}
	return store.Load(ctx, name)
}

// reloadFromFile reloads the served level when file declares it. With a saver
// the new declaration is stored first; failures are logged and the current
// level keeps serving.
func reloadFromFile(ctx context.Context, svc *navigation.Service, saver levelSaver, dir, file string) {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	lvl, err := leveldata.Load(os.DirFS(dir), filepath.ToSlash(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("level file removed", "file", file)
			return
		}
		slog.Warn("level reload failed", "file", file, "err", err)
		return
	}
	if lvl.Name != svc.LevelName() {
		slog.Debug("ignoring change to other level", "file", file, "level", lvl.Name)
		return
	}
	if saver != nil {
		if _, err := saver.Save(ctx, lvl); err != nil {
			slog.Warn("storing reloaded level failed", "file", file, "err", err)
			return
		}
	}
	if err := svc.Reload(ctx, lvl); err != nil {
		slog.Warn("level reload failed", "file", file, "err", err)
	}
}

func pickLevel(levels []*leveldata.Level, name string) (*leveldata.Level, error) {
	if len(levels) == 0 {
		return nil, errors.New("no levels found")
	}
	if name == "" {
		return levels[0], nil
	}
	for _, lvl := range levels {
		if lvl.Name == name {
			return lvl, nil
		}
	}
	return nil, fmt.Errorf("level %s: %w", name, db.ErrLevelNotFound)
}
