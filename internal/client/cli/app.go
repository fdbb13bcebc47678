package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/userkeeper/internal/client/client"
	"github.com/dmitrijs2005/userkeeper/internal/client/config"
	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/filex"
)

// pictureDir is where "picture" saves files when -o is not given.
const pictureDir = "pictures"

// APIClient is the subset of client.Client the commands use.
type APIClient interface {
	Register(ctx context.Context, r client.RegisterRequest) (*client.User, error)
	GetUser(ctx context.Context, id string) (*client.User, error)
	GetProfilePicture(ctx context.Context, id string) ([]byte, string, error)
	PutProfilePicture(ctx context.Context, id string, picture []byte, contentType string) error
}

type App struct {
	config *config.Config
	api    APIClient
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	hc := &http.Client{Timeout: c.RequestTimeout}
	return newApp(c, client.New(c.ServerURL, hc), os.Stdin, os.Stdout)
}

func newApp(c *config.Config, api APIClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out}
}

// Run executes the command found in args (normally os.Args[1:]) and returns
// the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	args = commandArgs(args)
	if len(args) == 0 {
		a.usage()
		return 2
	}

	var err error
	switch args[0] {
	case "register":
		err = a.Register(ctx, args[1:])
	case "get":
		err = a.Get(ctx, args[1:])
	case "picture":
		err = a.Picture(ctx, args[1:])
	case "set-picture":
		err = a.SetPicture(ctx, args[1:])
	case "help", "-h", "--help":
		a.usage()
		return 0
	default:
		fmt.Fprintf(a.out, "unknown command %q\n", args[0])
		a.usage()
		return 2
	}

	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return 1
	}
	return 0
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `Usage: client [-a URL] [-r SECONDS] [-c FILE] <command>

Commands:
  register [-name N] [-email E] [-phone P] -picture FILE
  get ID
  picture ID [-o FILE]
  set-picture ID FILE`)
}

// commandArgs drops the global flags handled by the config package.
func commandArgs(args []string) []string {
	global := make(map[string]struct{}, len(config.GlobalFlags))
	for _, f := range config.GlobalFlags {
		global[f] = struct{}{}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return args[i:]
		}
		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := global[name]; !ok {
			return args[i:]
		}
		if !hasValue {
			i++
		}
	}
	return nil
}

func (a *App) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) Register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "first name")
	email := fs.String("email", "", "email address")
	phone := fs.String("phone", "", "phone number")
	picture := fs.String("picture", "", "path to the profile picture")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *picture == "" {
		return errors.New("-picture is required")
	}
	data, err := os.ReadFile(*picture)
	if err != nil {
		return fmt.Errorf("read picture: %w", err)
	}

	for _, p := range []struct {
		dst    *string
		prompt string
	}{
		{name, "Enter first name"},
		{email, "Enter email"},
		{phone, "Enter phone"},
	} {
		if *p.dst != "" {
			continue
		}
		if *p.dst, err = GetSimpleText(a.reader, p.prompt, a.out); err != nil {
			return err
		}
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	cctx, cancel := a.callContext(ctx)
	defer cancel()

	u, err := a.api.Register(cctx, client.RegisterRequest{
		FirstName:   *name,
		Email:       *email,
		Password:    password,
		Phone:       *phone,
		Picture:     data,
		PictureName: filepath.Base(*picture),
	})

	var apiErr *client.APIError
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Registered, id=%s\n", u.ID)
		return nil
	case errors.Is(err, common.ErrorProfileStorageFailed) && errors.As(err, &apiErr):
		fmt.Fprintf(a.out, "Registered, id=%s, but the profile picture was not stored.\n", apiErr.UserID)
		fmt.Fprintf(a.out, "Retry with: set-picture %s %s\n", apiErr.UserID, *picture)
		return err
	case errors.Is(err, common.ErrorEmailAlreadyRegistered):
		return errors.New("email already registered")
	default:
		return err
	}
}

func (a *App) Get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get ID")
	}

	cctx, cancel := a.callContext(ctx)
	defer cancel()

	u, err := a.api.GetUser(cctx, args[0])
	if errors.Is(err, common.ErrorNotFound) {
		return errors.New("user not found")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:         %s\nFirst name: %s\nEmail:      %s\nPhone:      %s\n", u.ID, u.FirstName, u.Email, u.Phone)
	return nil
}

func (a *App) Picture(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: picture ID [-o FILE]")
	}
	id := args[0]

	fs := flag.NewFlagSet("picture", flag.ContinueOnError)
	fs.SetOutput(a.out)
	out := fs.String("o", "", "output file (default: pictures/<id> plus an extension)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cctx, cancel := a.callContext(ctx)
	defer cancel()

	data, contentType, err := a.api.GetProfilePicture(cctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return errors.New("profile picture not found")
	}
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path, err = filex.WriteInSubdir(pictureDir, id+extension(contentType), data)
	} else {
		err = os.WriteFile(path, data, 0o600)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", len(data), path)
	return nil
}

func (a *App) SetPicture(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: set-picture ID FILE")
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read picture: %w", err)
	}

	cctx, cancel := a.callContext(ctx)
	defer cancel()

	err = a.api.PutProfilePicture(cctx, args[0], data, "")
	if errors.Is(err, common.ErrorNotFound) {
		return errors.New("user not found")
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Profile picture stored")
	return nil
}

func extension(contentType string) string {
	switch strings.TrimSpace(strings.Split(contentType, ";")[0]) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
