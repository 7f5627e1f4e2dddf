package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"placekit/pkg/domain"
)

func (a *app) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List placed objects in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()
			if s.loadErr != nil {
				_, _ = fmt.Fprintf(a.errOut, "warning: local collection unreadable: %v\n", s.loadErr)
			}
			s.finish(cmd.Context())
			objects := s.store.List()
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(objects)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tKIND\tPOSITION\tSCALE\tMODIFIED")
			for _, obj := range objects {
				p, sc := obj.Transform.Position, obj.Transform.Scale
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%g,%g,%g\t%g,%g,%g\t%s\n",
					obj.ID, obj.Name, obj.ModelKind, p.X, p.Y, p.Z, sc.X, sc.Y, sc.Z,
					obj.LastModified.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print objects as JSON")
	return cmd
}

func (a *app) placeCmd() *cobra.Command {
	var x, y, z, scale float64
	cmd := &cobra.Command{
		Use:   "place NAME MODEL_KIND",
		Short: "Place a new object and print its id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openWritable(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			transform := domain.IdentityTransform().Translated(domain.Vec3{X: x, Y: y, Z: z})
			if scale != 1 {
				transform = transform.ScaledBy(scale)
			}
			obj, err := s.store.Add(cmd.Context(), domain.PlacedObject{
				ID:        domain.NewID(),
				Name:      args[0],
				ModelKind: args[1],
				Transform: transform,
			})
			if err != nil {
				return err
			}
			s.finish(cmd.Context())
			_, _ = fmt.Fprintln(a.out, obj.ID)
			return nil
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Position X")
	cmd.Flags().Float64Var(&y, "y", 0, "Position Y")
	cmd.Flags().Float64Var(&z, "z", 0, "Position Z")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Uniform scale factor (clamped)")
	return cmd
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move ID DX DY DZ",
		Short: "Translate an object",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			return a.update(cmd, args[0], func(obj *domain.PlacedObject) {
				obj.Transform = obj.Transform.Translated(domain.Vec3{X: delta[0], Y: delta[1], Z: delta[2]})
			})
		},
	}
}

func (a *app) scaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scale ID FACTOR",
		Short: "Multiply an object's scale by FACTOR (clamped)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			factor, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			return a.update(cmd, args[0], func(obj *domain.PlacedObject) {
				obj.Transform = obj.Transform.ScaledBy(factor[0])
			})
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(cmd, args[0], func(obj *domain.PlacedObject) {
				obj.Name = args[1]
			})
		},
	}
}

func (a *app) update(cmd *cobra.Command, id string, mutate func(*domain.PlacedObject)) error {
	s, err := a.openWritable(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()
	obj, ok := s.store.Get(id)
	if !ok {
		return domain.NotFoundError{ID: id}
	}
	mutate(&obj)
	if _, err := s.store.Update(cmd.Context(), obj); err != nil {
		return err
	}
	s.finish(cmd.Context())
	return nil
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openWritable(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			ok, err := s.store.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFoundError{ID: args[0]}
			}
			s.finish(cmd.Context())
			return nil
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every object locally and remotely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()
			n := s.store.Clear(cmd.Context())
			s.finish(cmd.Context())
			_, _ = fmt.Fprintf(a.out, "cleared %d objects\n", n)
			return nil
		},
	}
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", arg)
		}
		out[i] = v
	}
	return out, nil
}
