package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/console"
	"github.com/matheus3301/wppcrm/internal/dategroup"
	"github.com/matheus3301/wppcrm/internal/realtime"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type cli struct {
	core *console.App
	json bool
	out  io.Writer
	in   io.Reader
}

// parseInterspersed parses flags appearing anywhere among the positional
// arguments, which the flag package alone stops at.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (c *cli) emit(v any, text func(w io.Writer)) error {
	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	password := fs.String("password", "", "password (default: $WPPCRM_PASSWORD or prompt)")
	pos, err := parseInterspersed(fs, args)
	if err != nil || len(pos) != 1 {
		return errUsage
	}
	pass := *password
	if pass == "" {
		pass = os.Getenv("WPPCRM_PASSWORD")
	}
	if pass == "" {
		if pass, err = c.readPassword(); err != nil {
			return err
		}
	}
	resp, err := c.core.API.Login(ctx, pos[0], pass)
	if err != nil {
		return err
	}
	return c.emit(struct {
		User json.RawMessage `json:"user,omitempty"`
	}{resp.User}, func(w io.Writer) {
		fmt.Fprintf(w, "logged in as %s\n", pos[0])
	})
}

func (c *cli) readPassword() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdLogout(_ context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := c.core.API.Logout(); err != nil {
		return err
	}
	return c.emit(map[string]bool{"logged_out": true}, func(w io.Writer) {
		fmt.Fprintln(w, "logged out")
	})
}

func cmdWhoami(_ context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	raw, err := c.core.Store.User()
	if err != nil || len(raw) == 0 {
		return fmt.Errorf("not logged in")
	}
	var user map[string]any
	if err := json.Unmarshal(raw, &user); err != nil {
		return fmt.Errorf("decode stored user: %w", err)
	}
	return c.emit(user, func(w io.Writer) {
		keys := make([]string, 0, len(user))
		for k := range user {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s:\t%v\n", k, user[k])
		}
	})
}

func cmdToken(_ context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	token := c.core.API.AccessToken()
	if token == "" {
		return fmt.Errorf("not logged in")
	}
	exp, err := api.TokenExpiry(token)
	if err != nil {
		return err
	}
	now := time.Now()
	expired := api.TokenExpired(token, now)
	return c.emit(map[string]any{"expires_at": exp, "expired": expired}, func(w io.Writer) {
		fmt.Fprintf(w, "expires:\t%s\n", exp.Local().Format(time.RFC1123))
		if expired {
			fmt.Fprintf(w, "status:\texpired %s ago\n", now.Sub(exp).Round(time.Second))
		} else {
			fmt.Fprintf(w, "status:\tvalid for %s\n", exp.Sub(now).Round(time.Second))
		}
	})
}

func cmdRefresh(ctx context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := c.core.API.Refresh(ctx); err != nil {
		return err
	}
	return cmdToken(ctx, c, nil)
}

func cmdContacts(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("contacts", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", c.core.Config.ContactsPageSize, "page size")
	pos, err := parseInterspersed(fs, args)
	if err != nil || len(pos) != 0 {
		return errUsage
	}
	res, err := c.core.API.ListContacts(ctx, *page, *size)
	if err != nil {
		return err
	}
	return c.emit(res, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tPHONE\tUNREAD\tLAST MESSAGE")
		for _, ct := range res.Contacts {
			last := ""
			if ct.LastMessage != nil {
				last = oneLine(ct.LastMessage.Content, 50)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", ct.ID, ct.Name, ct.PhoneNumber, ct.UnreadCount, last)
		}
		fmt.Fprintf(w, "page %d, total %d, more: %v\n", *page, res.Pagination.Total, res.Pagination.HasNext)
	})
}

func cmdContact(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	d, err := c.core.API.GetContact(ctx, id)
	if err != nil {
		return err
	}
	return c.emit(d, func(w io.Writer) {
		fmt.Fprintf(w, "id:\t%d\n", d.ID)
		fmt.Fprintf(w, "name:\t%s\n", d.Name)
		fmt.Fprintf(w, "phone:\t%s\n", d.PhoneNumber)
		fmt.Fprintf(w, "unread:\t%d\n", d.UnreadCount)
		fmt.Fprintf(w, "labels:\t%s\n", strings.Join(d.Labels, ", "))
		fmt.Fprintf(w, "blocked:\t%v\n", d.IsBlocked)
	})
}

// cmdMessages loads the page through the timeline so output is ordered and
// de-duplicated exactly as the console shows it.
func cmdMessages(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("messages", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number, 1 is the newest")
	pos, err := parseInterspersed(fs, args)
	if err != nil || len(pos) != 1 {
		return errUsage
	}
	id, err := parseID(pos[0])
	if err != nil {
		return err
	}
	tl := c.core.Engine.Timeline()
	tl.Reset(id)
	res, err := tl.LoadPage(ctx, *page)
	if err != nil {
		return err
	}
	msgs := tl.Messages()
	return c.emit(msgs, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%s), page %d, more: %v\n", res.Contact.Name, res.Contact.PhoneNumber, res.Page, res.Cursor.HasNext)
		for _, b := range dategroup.Group(msgs, time.Now()) {
			fmt.Fprintf(w, "\n-- %s --\n", b.Label)
			for _, m := range b.Messages {
				author := "contact"
				if m.Direction() == api.FromOperator {
					author = "you"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Timestamp.Local().Format("15:04"), author, m.Status, oneLine(m.Content, 80))
			}
		}
	})
}

func cmdSend(ctx context.Context, c *cli, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	msg, err := c.core.Sender.SendText(ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	return c.emit(msg, func(w io.Writer) {
		fmt.Fprintf(w, "sent %s (%s)\n", msg.MessageID, msg.Status)
	})
}

func cmdTemplates(ctx context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	ts, err := c.core.API.ListTemplates(ctx)
	if err != nil {
		return err
	}
	return c.emit(ts, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tLANGUAGE\tSTATUS\tPARAMETERS")
		for _, t := range ts {
			names := make([]string, 0, len(t.PayloadStructure.Parameters))
			for _, p := range t.PayloadStructure.Parameters {
				names = append(names, p.Name)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, t.Language, t.Status, strings.Join(names, ","))
		}
	})
}

// parseParams reads template parameters from a YAML mapping. Scalar values
// of any type are accepted and rendered as text.
func parseParams(r io.Reader) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse params: %w", err)
	}
	params := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("parse params: %s must be a scalar", k)
		case nil:
			params[k] = ""
		default:
			params[k] = fmt.Sprint(v)
		}
	}
	return params, nil
}

func cmdSendTemplate(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("send-template", flag.ContinueOnError)
	paramsFile := fs.String("params", "", "YAML file of template parameters")
	pos, err := parseInterspersed(fs, args)
	if err != nil || len(pos) != 2 {
		return errUsage
	}
	templateID, err := parseID(pos[0])
	if err != nil {
		return err
	}
	contactID, err := parseID(pos[1])
	if err != nil {
		return err
	}
	params := map[string]string{}
	if *paramsFile != "" {
		f, err := os.Open(*paramsFile)
		if err != nil {
			return err
		}
		params, err = parseParams(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	tmpl, err := c.core.API.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	msg, err := c.core.Sender.SendTemplate(ctx, contactID, *tmpl, params)
	if err != nil {
		return err
	}
	return c.emit(msg, func(w io.Writer) {
		fmt.Fprintf(w, "sent template %s as %s (%s)\n", tmpl.Name, msg.MessageID, msg.Status)
	})
}

func cmdFlows(ctx context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	flows, err := c.core.API.ListFlows(ctx)
	if err != nil {
		return err
	}
	return c.emit(flows, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCATEGORIES")
		for _, f := range flows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.ID, f.Name, f.Status, strings.Join(f.Categories, ","))
		}
	})
}

// cmdWatch prints classified realtime events, one per line, until the
// context ends or the connection gives up.
func cmdWatch(ctx context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	events, cancel := c.core.Realtime.Subscribe(64)
	defer cancel()
	if err := c.core.Connect(ctx); err != nil {
		return err
	}
	defer c.core.Realtime.Disconnect()
	done := c.core.Realtime.Done()

	enc := json.NewEncoder(c.out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return c.core.Realtime.Err()
		case ev := <-events:
			if c.json {
				if err := enc.Encode(struct {
					Kind  string         `json:"kind"`
					Event realtime.Event `json:"event"`
				}{ev.Kind(), ev}); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(c.out, describeEvent(ev))
		}
	}
}

func describeEvent(ev realtime.Event) string {
	switch e := ev.(type) {
	case realtime.NewMessage:
		who := "you"
		if e.Message.Direction() == api.FromContact {
			who = e.Message.ContactName
			if who == "" {
				who = e.Message.ContactPhone
			}
		}
		return fmt.Sprintf("new_message contact=%d from=%s: %s", e.Message.ContactID, who, oneLine(e.Message.Content, 80))
	case realtime.StatusUpdate:
		return fmt.Sprintf("status_update contact=%d message=%s status=%s", e.ContactID, e.MessageID, e.Status)
	case realtime.ContactUpdate:
		return fmt.Sprintf("contact_update contact=%d name=%s", e.ContactID, e.Name)
	}
	return ev.Kind()
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
