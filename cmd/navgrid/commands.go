package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/udisondev/gridpath/internal/grid"
	"github.com/udisondev/gridpath/internal/leveldata"
	"github.com/udisondev/gridpath/internal/navigation"
)

func levelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "level",
		Usage:    "level file (.yaml, .yml or .tmx)",
		Required: true,
	}
}

func loadLevelFile(path string) (*leveldata.Level, error) {
	return leveldata.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// service builds a navigation service for a level file without persistence or metrics.
func (a *app) service(path string) (*navigation.Service, error) {
	lvl, err := loadLevelFile(path)
	if err != nil {
		return nil, err
	}
	return navigation.NewService(lvl, a.cfg.Planner)
}

func (a *app) pathCommand() *cli.Command {
	return &cli.Command{
		Name:  "path",
		Usage: "find the shortest path between two cells",
		Flags: []cli.Flag{
			levelFlag(),
			&cli.StringFlag{Name: "from", Usage: "start cell x,z[,floor]", Required: true},
			&cli.StringFlag{Name: "to", Usage: "goal cell x,z[,floor]", Required: true},
			&cli.BoolFlag{Name: "world", Usage: "print world positions instead of cells"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			from, err := grid.ParseCoord(cmd.String("from"))
			if err != nil {
				return err
			}
			to, err := grid.ParseCoord(cmd.String("to"))
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.String("level"))
			if err != nil {
				return err
			}

			path, err := svc.FindPath(from, to)
			if err != nil {
				return err
			}
			if !path.Found() {
				fmt.Fprintln(a.out, "no path")
				return nil
			}

			if cmd.Bool("world") {
				for _, p := range svc.Waypoints(path) {
					fmt.Fprintf(a.out, "%.3f %.3f %.3f\n", p.X, p.Y, p.Z)
				}
			} else {
				for _, c := range path.Coords {
					fmt.Fprintln(a.out, c)
				}
			}
			fmt.Fprintf(a.out, "cost %d\n", path.Cost)
			return nil
		},
	}
}

func (a *app) reachCommand() *cli.Command {
	return &cli.Command{
		Name:  "reach",
		Usage: "list the cells reachable from a cell within a move range",
		Flags: []cli.Flag{
			levelFlag(),
			&cli.StringFlag{Name: "from", Usage: "unit cell x,z[,floor]", Required: true},
			&cli.IntFlag{Name: "range", Usage: "maximum move distance in steps", Value: 4},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			from, err := grid.ParseCoord(cmd.String("from"))
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.String("level"))
			if err != nil {
				return err
			}

			targets, err := svc.MoveTargets(from, int(cmd.Int("range")))
			if err != nil {
				return err
			}
			for _, c := range targets {
				fmt.Fprintln(a.out, c)
			}
			fmt.Fprintf(a.out, "%d cells\n", len(targets))
			return nil
		},
	}
}

func (a *app) inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "print a level's walkability map, links and fingerprint",
		Flags: []cli.Flag{levelFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			lvl, err := loadLevelFile(cmd.String("level"))
			if err != nil {
				return err
			}
			fingerprint, err := lvl.Fingerprint()
			if err != nil {
				return err
			}
			planner, err := leveldata.Build(lvl, a.cfg.Planner.ObstacleReach, a.cfg.Planner.FloorReach)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "level %s %dx%d, %d floors, cell %.2f, floor height %.2f\n",
				lvl.Name, lvl.Width, lvl.Height, lvl.Floors, lvl.CellSize, lvl.FloorHeight)
			fmt.Fprintf(a.out, "fingerprint %s\n", fingerprint)

			for f := range lvl.Floors {
				walkable := 0
				var b strings.Builder
				for z := range lvl.Height {
					for x := range lvl.Width {
						ok, err := planner.IsWalkable(grid.Coord{X: x, Z: z, Floor: f})
						if err != nil {
							return err
						}
						if ok {
							walkable++
							b.WriteByte('.')
						} else {
							b.WriteByte('#')
						}
					}
					b.WriteByte('\n')
				}
				fmt.Fprintf(a.out, "floor %d: %d walkable\n%s", f, walkable, b.String())
			}

			for _, l := range planner.Links() {
				fmt.Fprintf(a.out, "link %s <-> %s\n", l.A, l.B)
			}
			return nil
		},
	}
}
