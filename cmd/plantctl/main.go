// Command plantctl is a CLI client for the plant-keeper care API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/plant-keeper/internal/identity"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `plantctl CLI
Usage:
  plantctl -addr URL [-health HOST:PORT] <cmd> [args]

Commands:
  version
  health                                       (gRPC health check)
  token      -set <jwt> | -user <uuid> -key <k> [-ttl 24h]   (saves token)
  plants
  add-plant  -name <n> -species <s> -water <d> -mist <d> -fertilize <d> -rotate <d>
  status     -id <plant>
  tasks      [-view all|pending|overdue|today|upcoming|completed-today] [-date YYYY-MM-DD]
  complete   -id <task> [-note text]
  snooze     -id <task> -days <n>
  care       -plant <plant> [-type water|mist|fertilize|rotate] [-note text]
  profile
  insights   [-all]
`)
	os.Exit(2)
}

// opts are the global flags.
type opts struct {
	addr   string
	health string
}

// main dispatches subcommands.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "API base URL")
	healthAddr := flag.String("health", "localhost:8081", "gRPC health address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, opts{addr: *addr, health: *healthAddr}, flag.Arg(0), flag.Args()[1:])
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		usage()
	}
	if err != nil {
		fail(err)
	}
}

var errUsage = errors.New("bad usage")

func run(ctx context.Context, o opts, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "plantctl %s (%s)\n", version, buildDate)
		return nil
	case "health":
		st, err := checkHealth(ctx, o.health, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, st)
		return nil
	case "token":
		return cmdToken(args)
	}

	token, err := loadToken()
	if err != nil {
		return err
	}
	cl := newClient(o.addr, token)

	switch cmd {
	case "plants":
		var out any
		if err := cl.do(ctx, http.MethodGet, "/api/plants", nil, &out); err != nil {
			return err
		}
		printJSON(out)

	case "add-plant":
		fs := flag.NewFlagSet("add-plant", flag.ContinueOnError)
		name := fs.String("name", "", "nickname")
		species := fs.String("species", "", "species")
		water := fs.Int("water", 7, "watering frequency (days)")
		mist := fs.Int("mist", 3, "misting frequency (days)")
		fert := fs.Int("fertilize", 30, "fertilizing frequency (days)")
		rotate := fs.Int("rotate", 14, "rotating frequency (days)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *name == "" || *species == "" {
			return fmt.Errorf("%w: need -name and -species", errUsage)
		}
		var out any
		err := cl.do(ctx, http.MethodPost, "/api/plants", map[string]any{
			"nickname":                 *name,
			"species":                  *species,
			"wateringFrequencyDays":    *water,
			"mistingFrequencyDays":     *mist,
			"fertilizingFrequencyDays": *fert,
			"rotatingFrequencyDays":    *rotate,
		}, &out)
		if err != nil {
			return err
		}
		printJSON(out)

	case "status":
		id, err := idFlag("status", args)
		if err != nil {
			return err
		}
		var out any
		if err := cl.do(ctx, http.MethodGet, "/api/plants/"+id+"/status", nil, &out); err != nil {
			return err
		}
		printJSON(out)

	case "tasks":
		fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
		view := fs.String("view", "pending", "task view")
		date := fs.String("date", "", "reference day (YYYY-MM-DD)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		q := url.Values{"view": {*view}}
		if *date != "" {
			q.Set("date", *date)
		}
		var out any
		if err := cl.do(ctx, http.MethodGet, "/api/tasks?"+q.Encode(), nil, &out); err != nil {
			return err
		}
		printJSON(out)

	case "complete":
		fs := flag.NewFlagSet("complete", flag.ContinueOnError)
		id := fs.String("id", "", "task id (uuid)")
		note := fs.String("note", "", "note for the care log")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if _, err := uuid.FromString(*id); err != nil {
			return fmt.Errorf("%w: need -id <uuid>", errUsage)
		}
		var out any
		if err := cl.do(ctx, http.MethodPost, "/api/tasks/"+*id+"/complete", map[string]string{"note": *note}, &out); err != nil {
			return err
		}
		printJSON(out)

	case "care":
		fs := flag.NewFlagSet("care", flag.ContinueOnError)
		id := fs.String("plant", "", "plant id (uuid)")
		action := fs.String("type", "water", "care action (water|mist|fertilize|rotate)")
		note := fs.String("note", "", "note for the care log")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if _, err := uuid.FromString(*id); err != nil {
			return fmt.Errorf("%w: need -plant <uuid>", errUsage)
		}
		var out any
		body := map[string]string{"type": *action, "note": *note}
		if err := cl.do(ctx, http.MethodPost, "/api/plants/"+*id+"/care", body, &out); err != nil {
			return err
		}
		printJSON(out)

	case "snooze":
		fs := flag.NewFlagSet("snooze", flag.ContinueOnError)
		id := fs.String("id", "", "task id (uuid)")
		days := fs.Int("days", 1, "days to postpone")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if _, err := uuid.FromString(*id); err != nil {
			return fmt.Errorf("%w: need -id <uuid>", errUsage)
		}
		var out any
		if err := cl.do(ctx, http.MethodPost, "/api/tasks/"+*id+"/snooze", map[string]int{"days": *days}, &out); err != nil {
			return err
		}
		printJSON(out)

	case "profile":
		var out any
		if err := cl.do(ctx, http.MethodGet, "/api/profile", nil, &out); err != nil {
			return err
		}
		printJSON(out)

	case "insights":
		fs := flag.NewFlagSet("insights", flag.ContinueOnError)
		all := fs.Bool("all", false, "include dismissed")
		if err := fs.Parse(args); err != nil {
			return err
		}
		var out any
		if err := cl.do(ctx, http.MethodGet, fmt.Sprintf("/api/insights?all=%t", *all), nil, &out); err != nil {
			return err
		}
		printJSON(out)

	default:
		return errUsage
	}
	return nil
}

// cmdToken stores a provider token, or signs a local one for development.
func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	set := fs.String("set", "", "token issued by the identity provider")
	user := fs.String("user", "", "user id for a locally signed dev token")
	key := fs.String("key", os.Getenv("JWT_KEY"), "signing key for dev tokens")
	ttl := fs.Duration("ttl", 24*time.Hour, "dev token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *set != "" {
		if err := saveToken(*set, tokenExpiry(*set, time.Hour)); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	}

	id, err := uuid.FromString(*user)
	if err != nil || *key == "" {
		return fmt.Errorf("%w: need -set, or -user <uuid> with -key", errUsage)
	}
	now := time.Now()
	tok, err := identity.Issue([]byte(*key), id, *ttl, now)
	if err != nil {
		return err
	}
	if err := saveToken(tok, now.Add(*ttl)); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "ok")
	return nil
}

func idFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "id (uuid)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if _, err := uuid.FromString(*id); err != nil {
		return "", fmt.Errorf("%w: need -id <uuid>", errUsage)
	}
	return *id, nil
}

// ---- helpers ----

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d code=%s msg=%s\n", ae.Status, ae.Code, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
