package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/user"
)

/*
====================================
ACCOUNT
====================================
*/

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, defaults to $STAGECTL_PASSWORD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("STAGECTL_PASSWORD")
	}
	if *email == "" || *password == "" {
		fs.Usage()
		return errUsage
	}

	rec, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s (%s), home %s\n", rec.FullName(), rec.Role, a.client.HomeFor(rec.Role))
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	var req api.RegisterRequest
	fs.StringVar(&req.Nom, "nom", "", "last name")
	fs.StringVar(&req.Prenom, "prenom", "", "first name")
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "account password")
	role := fs.String("role", "", "ETUDIANT or ENSEIGNANT")
	filiere := fs.Int64("filiere", 0, "filiere id")
	annee := fs.Int("annee", 0, "study year")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *role != "" {
		r, ok := user.ParseRole(*role)
		if !ok {
			return fmt.Errorf("unknown role %q", *role)
		}
		req.Role = r
	}
	if *filiere > 0 {
		req.FiliereID = filiere
	}
	if *annee > 0 {
		req.Annee = annee
	}

	rec, err := a.client.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s (%s) with id %d\n", rec.FullName(), rec.Role, rec.ID)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	rec, err := a.client.SyncProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\n", rec.ID, rec.FullName(), rec.Email, rec.Role)
	return nil
}

/*
====================================
STAGES
====================================
*/

func (a *app) stages(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	svc := a.client.Stages()
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		return a.printList(svc.All(ctx))
	case "mine":
		return a.printList(svc.Mine(ctx))
	case "to-validate":
		return a.printList(svc.ToValidate(ctx))
	case "search":
		if len(rest) != 1 {
			return errUsage
		}
		return a.printList(svc.Search(ctx, rest[0]))
	case "filiere", "student", "encadrant":
		return a.byRef(ctx, sub, rest)
	case "show":
		return a.printStage(a.load(ctx, rest, 1))
	case "create":
		return a.create(ctx, rest)
	case "delete":
		st, err := a.load(ctx, rest, 1)
		if err != nil {
			return err
		}
		if err := svc.Delete(ctx, *st); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted stage %d\n", st.ID)
		return nil
	case "submit":
		st, err := a.load(ctx, rest, 1)
		if err != nil {
			return err
		}
		return a.printStage(svc.Submit(ctx, *st))
	case "cancel":
		st, err := a.load(ctx, rest, 1)
		if err != nil {
			return err
		}
		return a.printStage(svc.Cancel(ctx, *st))
	case "validate", "reassign":
		st, err := a.load(ctx, rest, 2)
		if err != nil {
			return err
		}
		enc, err := parseID(rest[1])
		if err != nil {
			return err
		}
		if sub == "validate" {
			return a.printStage(svc.Validate(ctx, *st, enc))
		}
		return a.printStage(svc.Reassign(ctx, *st, enc))
	case "refuse":
		st, err := a.load(ctx, rest, 2)
		if err != nil {
			return err
		}
		return a.printStage(svc.Refuse(ctx, *st, rest[1]))
	case "status":
		st, err := a.load(ctx, rest, 2)
		if err != nil {
			return err
		}
		to := stage.State(strings.ToUpper(strings.TrimSpace(rest[1])))
		if !to.Valid() {
			return fmt.Errorf("unknown state %q", rest[1])
		}
		return a.printStage(svc.Advance(ctx, *st, to))
	case "upload":
		st, err := a.load(ctx, rest, 2)
		if err != nil {
			return err
		}
		f, err := os.Open(rest[1])
		if err != nil {
			return err
		}
		defer f.Close()
		return a.printStage(svc.UploadReport(ctx, *st, filepath.Base(rest[1]), f))
	default:
		fmt.Fprintf(a.errOut, "unknown stages command %q\n", sub)
		return errUsage
	}
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := a.flags("stages create")
	var d stage.Draft
	fs.StringVar(&d.Sujet, "sujet", "", "subject")
	fs.StringVar(&d.Description, "description", "", "description")
	fs.StringVar(&d.Entreprise, "entreprise", "", "company")
	fs.StringVar(&d.Ville, "ville", "", "city")
	debut := fs.String("debut", "", "start date, YYYY-MM-DD")
	fin := fs.String("fin", "", "end date, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if d.DateDebut, err = parseDate(*debut); err != nil {
		return fmt.Errorf("--debut: %w", err)
	}
	if d.DateFin, err = parseDate(*fin); err != nil {
		return fmt.Errorf("--fin: %w", err)
	}
	return a.printStage(a.client.Stages().Create(ctx, d))
}

func (a *app) byRef(ctx context.Context, kind string, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ref, err := parseID(args[0])
	if err != nil {
		return err
	}
	c := a.client.API()
	switch kind {
	case "filiere":
		return a.printList(c.StagesByFiliere(ctx, ref))
	case "student":
		return a.printList(c.StagesByStudent(ctx, ref))
	default:
		return a.printList(c.StagesByEncadrant(ctx, ref))
	}
}

// load fetches the stage named by args[0] after checking the argument count.
func (a *app) load(ctx context.Context, args []string, want int) (*stage.Stage, error) {
	if len(args) != want {
		return nil, errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	return a.client.Stages().Get(ctx, id)
}

func (a *app) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseDate(raw string) (stage.Date, error) {
	if raw == "" {
		return stage.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return stage.Date{}, fmt.Errorf("invalid date %q", raw)
	}
	return stage.Date{Time: t}, nil
}
