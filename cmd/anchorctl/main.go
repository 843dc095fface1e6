// Command anchorctl is the CLI tool for driftanchor.
// It creates, restores, stores, and bundles text anchors for HTML and XML documents.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/alecthomas/kong"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/bundle"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
	"github.com/quillmark/driftanchor/core/htmldoc"
	"github.com/quillmark/driftanchor/core/resolve"
	"github.com/quillmark/driftanchor/core/store"
	"github.com/quillmark/driftanchor/core/xmldoc"
	"github.com/quillmark/driftanchor/internal/config"
	"github.com/quillmark/driftanchor/internal/logging"
	"github.com/quillmark/driftanchor/internal/schemadoc"
	"github.com/quillmark/driftanchor/internal/watcher"
)

const version = "0.1.0"

// CLI defines the command-line interface for anchorctl.
var CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Config file path" type:"path"`
	StorePath string `name:"store-path" help:"Anchor database path override" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`

	// Command groups (noun-first organization)
	Anchor  AnchorGroup `cmd:"" help:"Anchor operations (create, resolve, inspect)"`
	Store   StoreGroup  `cmd:"" help:"Anchor store operations (save, list, load, delete)"`
	Bundle  BundleGroup `cmd:"" help:"Bundle operations (pack, unpack)"`
	Watch   WatchCmd    `cmd:"" help:"Watch documents and re-resolve anchors on change"`
	Schema  SchemaGroup `cmd:"" help:"Selector wire-format operations"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// AnchorGroup contains anchor lifecycle operations.
type AnchorGroup struct {
	Create  AnchorCreateCmd  `cmd:"" help:"Create an anchor for a text span in a document"`
	Resolve AnchorResolveCmd `cmd:"" help:"Restore anchors against a document snapshot"`
	Inspect AnchorInspectCmd `cmd:"" help:"Display selector details without resolving"`
}

// StoreGroup contains anchor store operations.
type StoreGroup struct {
	Save   StoreSaveCmd   `cmd:"" help:"Save selectors into the anchor store"`
	List   StoreListCmd   `cmd:"" help:"List stored anchors"`
	Load   StoreLoadCmd   `cmd:"" help:"Load a stored anchor as JSON"`
	Delete StoreDeleteCmd `cmd:"" help:"Delete a stored anchor"`
}

// BundleGroup contains bundle import/export operations.
type BundleGroup struct {
	Pack   BundlePackCmd   `cmd:"" help:"Pack stored anchors into a bundle archive"`
	Unpack BundleUnpackCmd `cmd:"" help:"Unpack a bundle archive"`
}

// SchemaGroup contains selector wire-format operations.
type SchemaGroup struct {
	Validate SchemaValidateCmd `cmd:"" help:"Validate selector files against the wire schema"`
	Show     SchemaShowCmd     `cmd:"" help:"Print the selector JSON Schema"`
}

// AnchorCreateCmd creates an anchor for a text span in a document.
type AnchorCreateCmd struct {
	Document string `arg:"" help:"Path to document file" type:"existingfile"`
	Text     string `help:"Span text to anchor (first occurrence)"`
	Selector string `help:"CSS selector narrowing --text to one element (HTML)"`
	XPath    string `help:"XPath expression narrowing --text to one element (XML)"`
	Start    int    `help:"Span start as an absolute rune offset" default:"-1"`
	End      int    `help:"Span end as an absolute rune offset, exclusive" default:"-1"`
	Format   string `help:"Document format (html, xml); default detected from the file"`
	Out      string `short:"o" help:"Output selector JSON path (default: stdout)" type:"path"`
	Save     bool   `help:"Also save the anchor into the anchor store"`
}

func (c *AnchorCreateCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, fingerprint, err := loadDocument(c.Document, c.Format)
	if err != nil {
		return err
	}

	builder := resolve.NewBuilder(m, resolve.BuilderConfig{
		ContextWindow: cfg.Resolve.ContextWindow,
		FuzzyWindow:   cfg.Resolve.FuzzyWindow,
		Threshold:     cfg.Resolve.Threshold,
	})

	sel, err := c.build(builder, m)
	if err != nil {
		return err
	}

	// Bare stdout output stays clean for piping.
	if c.Out == "" && !c.Save {
		return writeJSON("", sel)
	}

	fmt.Printf("Created: %s\n", sel.ID)
	fmt.Printf("  Document: %s\n", shortFingerprint(fingerprint))
	fmt.Printf("  Span: [%d,%d) %q\n", sel.Position.StartOffset, sel.Position.EndOffset, truncate(sel.Position.Text, 40))
	if sel.Structural != nil {
		fmt.Printf("  Path: %s\n", sel.Structural.Path)
	}

	if c.Out != "" {
		if err := writeJSON(c.Out, sel); err != nil {
			return err
		}
		fmt.Printf("  Written: %s\n", c.Out)
	}

	if c.Save {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Save(context.Background(), fingerprint, sel); err != nil {
			return fmt.Errorf("failed to save anchor: %w", err)
		}
		fmt.Printf("  Stored: %s\n", cfg.Store.Path)
	}

	return nil
}

// build locates the requested span and captures it.
func (c *AnchorCreateCmd) build(builder *resolve.Builder, m document.Model) (*anchor.MultiSelector, error) {
	switch {
	case c.Selector != "":
		if c.Text == "" {
			return nil, errors.NewValidation("text", "required with --selector")
		}
		d, ok := m.(*htmldoc.Document)
		if !ok {
			return nil, errors.NewUnsupported("--selector", "CSS selectors apply to HTML documents")
		}
		span, err := d.SpanOf(c.Selector, c.Text)
		if err != nil {
			return nil, err
		}
		return builder.Build(span)

	case c.XPath != "":
		if c.Text == "" {
			return nil, errors.NewValidation("text", "required with --xpath")
		}
		d, ok := m.(*xmldoc.Document)
		if !ok {
			return nil, errors.NewUnsupported("--xpath", "XPath expressions apply to XML documents")
		}
		span, err := d.SpanOf(c.XPath, c.Text)
		if err != nil {
			return nil, err
		}
		return builder.Build(span)

	case c.Text != "":
		flatText := builder.Flattened().Text()
		i := strings.Index(flatText, c.Text)
		if i < 0 {
			return nil, errors.NewNoMatch(c.Text)
		}
		start := utf8.RuneCountInString(flatText[:i])
		return builder.BuildAt(start, start+utf8.RuneCountInString(c.Text))

	case c.Start >= 0 && c.End >= 0:
		return builder.BuildAt(c.Start, c.End)
	}

	return nil, errors.NewValidation("span", "specify --text (optionally scoped by --selector or --xpath) or --start and --end")
}

// AnchorResolveCmd restores anchors against a document snapshot.
type AnchorResolveCmd struct {
	Document  string `arg:"" help:"Path to document file" type:"existingfile"`
	Selectors string `arg:"" help:"Selector JSON file (object or array)" type:"existingfile"`
	Format    string `help:"Document format (html, xml); default detected from the file"`
	JSON      bool   `help:"Output as JSON"`
}

func (c *AnchorResolveCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sels, err := readSelectors(c.Selectors)
	if err != nil {
		return err
	}
	if len(sels) == 0 {
		return errors.NewValidation("selectors", "file contains no selectors")
	}

	m, fingerprint, err := loadDocument(c.Document, c.Format)
	if err != nil {
		return err
	}

	engine := resolve.NewEngine(resolve.EngineConfig{MaxErrorRate: cfg.Resolve.MaxErrorRate})
	outcomes := engine.ResolveAll(m, sels)
	flat := document.Flatten(m)

	if c.JSON {
		return writeJSON("", buildReport(flat, c.Document, fingerprint, sels, outcomes))
	}

	fmt.Printf("Document: %s\n", c.Document)
	fmt.Printf("  Fingerprint: %s\n", shortFingerprint(fingerprint))
	fmt.Println()

	restored := 0
	for i, out := range outcomes {
		printOutcome(flat, sels[i], out)
		if out.Restored() {
			restored++
		}
	}

	fmt.Printf("\n%d/%d anchors restored\n", restored, len(sels))
	if restored < len(sels) {
		return fmt.Errorf("%d anchor(s) failed to restore", len(sels)-restored)
	}
	return nil
}

// AnchorInspectCmd displays selector details without resolving.
type AnchorInspectCmd struct {
	Selectors string `arg:"" help:"Selector JSON file (object or array)" type:"existingfile"`
	JSON      bool   `help:"Output as JSON"`
}

func (c *AnchorInspectCmd) Run() error {
	sels, err := readSelectors(c.Selectors)
	if err != nil {
		return err
	}

	if c.JSON {
		return writeJSON("", sels)
	}

	for _, sel := range sels {
		id := sel.ID
		if id == "" {
			id = "(no id)"
		}
		fmt.Printf("Anchor: %s\n", id)
		if !sel.CreatedAt.IsZero() {
			fmt.Printf("  Created: %s\n", sel.CreatedAt.Format(time.RFC3339))
		}
		fmt.Printf("  Text: %q\n", truncate(sel.Text(), 60))
		fmt.Printf("  Content hash: %08x\n", sel.ContentHash)
		if sel.Structural != nil {
			fmt.Printf("  Structural: %s [%d,%d)\n", sel.Structural.Path, sel.Structural.StartOffset, sel.Structural.EndOffset)
		} else {
			fmt.Printf("  Structural: absent (span crosses leaf boundaries)\n")
		}
		fmt.Printf("  Position: [%d,%d)\n", sel.Position.StartOffset, sel.Position.EndOffset)
		fmt.Printf("  Fuzzy: threshold %.2f, context %d+%d runes\n",
			sel.Fuzzy.Threshold,
			utf8.RuneCountInString(sel.Fuzzy.TextBefore),
			utf8.RuneCountInString(sel.Fuzzy.TextAfter))
		if errs := anchor.Validate(sel); len(errs) > 0 {
			fmt.Printf("  Validation: %d problem(s)\n", len(errs))
			for _, e := range errs {
				fmt.Printf("    - %v\n", e)
			}
		} else {
			fmt.Printf("  Validation: ok\n")
		}
		fmt.Println()
	}

	fmt.Printf("Total: %d selector(s)\n", len(sels))
	return nil
}

// StoreSaveCmd saves selectors into the anchor store.
type StoreSaveCmd struct {
	Document  string `arg:"" help:"Path to the document the selectors were built from" type:"existingfile"`
	Selectors string `arg:"" help:"Selector JSON file (object or array)" type:"existingfile"`
}

func (c *StoreSaveCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sels, err := readSelectors(c.Selectors)
	if err != nil {
		return err
	}
	if len(sels) == 0 {
		return errors.NewValidation("selectors", "file contains no selectors")
	}

	fingerprint, size, err := watcher.FingerprintFile(c.Document)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for _, sel := range sels {
		if err := st.Save(ctx, fingerprint, sel); err != nil {
			return fmt.Errorf("failed to save %s: %w", sel.ID, err)
		}
		fmt.Printf("Saved: %s\n", sel.ID)
	}

	fmt.Printf("\n%d anchor(s) saved for %s (%d bytes)\n", len(sels), filepath.Base(c.Document), size)
	return nil
}

// StoreListCmd lists stored anchors.
type StoreListCmd struct {
	Document string `help:"Only anchors created for this document file" type:"existingfile"`
}

func (c *StoreListCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var records []store.Record
	if c.Document != "" {
		fingerprint, _, err := watcher.FingerprintFile(c.Document)
		if err != nil {
			return err
		}
		records, err = st.ListByDocument(ctx, fingerprint)
		if err != nil {
			return err
		}
	} else {
		records, err = st.List(ctx)
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		fmt.Println("No anchors stored.")
		return nil
	}

	fmt.Printf("%-36s  %-12s  %-20s  %s\n", "ID", "DOCUMENT", "CREATED", "TEXT")
	for _, r := range records {
		fmt.Printf("%-36s  %-12s  %-20s  %s\n",
			r.Selector.ID,
			shortFingerprint(r.Fingerprint),
			r.Selector.CreatedAt.UTC().Format(time.RFC3339),
			truncate(r.Selector.Text(), 40))
	}

	fmt.Printf("\nTotal: %d anchor(s)\n", len(records))
	return nil
}

// StoreLoadCmd loads a stored anchor as JSON.
type StoreLoadCmd struct {
	ID  string `arg:"" help:"Anchor ID"`
	Out string `short:"o" help:"Output path (default: stdout)" type:"path"`
}

func (c *StoreLoadCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sel, err := st.Get(context.Background(), c.ID)
	if err != nil {
		return err
	}
	return writeJSON(c.Out, sel)
}

// StoreDeleteCmd deletes a stored anchor.
type StoreDeleteCmd struct {
	ID string `arg:"" help:"Anchor ID"`
}

func (c *StoreDeleteCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted: %s\n", c.ID)
	return nil
}

// BundlePackCmd packs stored anchors into a bundle archive.
type BundlePackCmd struct {
	Out         string `arg:"" help:"Output bundle path" type:"path"`
	Document    string `help:"Only anchors created for this document file" type:"existingfile"`
	Compression string `help:"Compression algorithm" enum:"xz,gzip" default:"xz"`
}

func (c *BundlePackCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var records []store.Record
	if c.Document != "" {
		fingerprint, _, err := watcher.FingerprintFile(c.Document)
		if err != nil {
			return err
		}
		records, err = st.ListByDocument(ctx, fingerprint)
		if err != nil {
			return err
		}
	} else {
		records, err = st.List(ctx)
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		return fmt.Errorf("no anchors to pack")
	}

	anchors := make([]bundle.Anchor, len(records))
	for i, r := range records {
		anchors[i] = bundle.Anchor{Selector: r.Selector, Fingerprint: r.Fingerprint}
	}

	manifest, err := bundle.PackWithOptions(c.Out, anchors, &bundle.PackOptions{
		Compression: bundle.Compression(c.Compression),
	})
	if err != nil {
		return fmt.Errorf("failed to pack bundle: %w", err)
	}

	fmt.Printf("Packed: %s\n", c.Out)
	fmt.Printf("  Bundle version: %s\n", manifest.BundleVersion)
	fmt.Printf("  Created: %s\n", manifest.CreatedAt)
	fmt.Printf("  Anchors: %d\n", len(manifest.Anchors))
	return nil
}

// BundleUnpackCmd unpacks a bundle archive.
type BundleUnpackCmd struct {
	Bundle    string `arg:"" help:"Path to bundle" type:"existingfile"`
	Out       string `short:"o" help:"Directory to write selector JSON files" type:"path"`
	IntoStore bool   `help:"Save unpacked anchors into the anchor store"`
}

func (c *BundleUnpackCmd) Run() error {
	manifest, anchors, err := bundle.Unpack(c.Bundle)
	if err != nil {
		return fmt.Errorf("failed to unpack bundle: %w", err)
	}

	fmt.Printf("Bundle: %s\n", c.Bundle)
	fmt.Printf("  Version: %s\n", manifest.BundleVersion)
	fmt.Printf("  Created: %s\n", manifest.CreatedAt)
	fmt.Printf("  Tool: %s %s\n", manifest.Tool.Name, manifest.Tool.Version)
	fmt.Printf("  Anchors: %d\n", len(anchors))

	if c.Out == "" && !c.IntoStore {
		fmt.Println()
		for _, e := range manifest.Anchors {
			fmt.Printf("  %s  %s\n", e.ID, shortFingerprint(e.Fingerprint))
		}
		return nil
	}

	if c.Out != "" {
		if err := os.MkdirAll(c.Out, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		names := make(map[string]string, len(manifest.Anchors))
		for _, e := range manifest.Anchors {
			names[e.ID] = filepath.Base(e.Path)
		}
		for _, a := range anchors {
			dest := filepath.Join(c.Out, names[a.Selector.ID])
			if err := writeJSON(dest, a.Selector); err != nil {
				return err
			}
			fmt.Printf("  Wrote: %s\n", dest)
		}
	}

	if c.IntoStore {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		for _, a := range anchors {
			if err := st.Save(ctx, a.Fingerprint, a.Selector); err != nil {
				return fmt.Errorf("failed to save %s: %w", a.Selector.ID, err)
			}
		}
		fmt.Printf("  Imported %d anchor(s) into %s\n", len(anchors), cfg.Store.Path)
	}

	return nil
}

// WatchCmd watches documents and re-resolves anchors on change.
type WatchCmd struct {
	Paths     []string `arg:"" help:"Document files or directories to watch"`
	Selectors string   `help:"Selector JSON file re-resolved on every change" type:"existingfile"`
	FromStore bool     `help:"Load each file's anchors from the store at startup"`
	Debounce  int      `help:"Quiet period in milliseconds before a change fires (default: from config)"`
	Format    string   `help:"Document format (html, xml); default detected per file"`
}

func (c *WatchCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if c.Selectors == "" && !c.FromStore {
		return errors.NewValidation("selectors", "specify --selectors or --from-store")
	}
	if c.Selectors != "" && c.FromStore {
		return errors.NewValidation("selectors", "--selectors and --from-store are mutually exclusive")
	}

	var fixed []*anchor.MultiSelector
	if c.Selectors != "" {
		fixed, err = readSelectors(c.Selectors)
		if err != nil {
			return err
		}
		if len(fixed) == 0 {
			return errors.NewValidation("selectors", "file contains no selectors")
		}
	}

	// Anchors are looked up by the fingerprint each watched file has now;
	// later events re-resolve that same set against the changed content.
	perPath := make(map[string][]*anchor.MultiSelector)
	if c.FromStore {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		loaded := 0
		ctx := context.Background()
		for _, p := range c.Paths {
			info, err := os.Stat(p)
			if err != nil || info.IsDir() {
				continue
			}
			fingerprint, _, err := watcher.FingerprintFile(p)
			if err != nil {
				continue
			}
			records, err := st.ListByDocument(ctx, fingerprint)
			if err != nil {
				st.Close()
				return err
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			for _, r := range records {
				perPath[abs] = append(perPath[abs], r.Selector)
				loaded++
			}
		}
		st.Close()
		if loaded == 0 {
			return fmt.Errorf("no stored anchors match the watched files")
		}
		fmt.Printf("Loaded %d anchor(s) from %s\n", loaded, cfg.Store.Path)
	}

	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	if c.Debounce > 0 {
		debounce = time.Duration(c.Debounce) * time.Millisecond
	}

	w, err := watcher.New(c.Paths, debounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	engine := resolve.NewEngine(resolve.EngineConfig{MaxErrorRate: cfg.Resolve.MaxErrorRate})

	fmt.Printf("Watching %d path(s), debounce %v. Ctrl-C to stop.\n", len(c.Paths), debounce)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			sels := fixed
			if c.FromStore {
				sels = perPath[ev.Path]
			}
			if len(sels) == 0 {
				logging.WatchEvent("skipped", ev.Path, "reason", "no anchors")
				continue
			}
			c.reanchor(engine, ev, sels)
		case err, ok := <-w.Errors():
			if ok && err != nil {
				logging.Error("watch error", "error", err)
			}
		case <-sigCh:
			fmt.Println("\nStopped.")
			return nil
		}
	}
}

// reanchor re-resolves one selector set against the changed document.
func (c *WatchCmd) reanchor(engine *resolve.Engine, ev watcher.Event, sels []*anchor.MultiSelector) {
	logging.WatchEvent("stable", ev.Path, "fingerprint", shortFingerprint(ev.Fingerprint), "size", ev.Size)

	m, _, err := loadDocument(ev.Path, c.Format)
	if err != nil {
		logging.Error("document parse failed", "path", ev.Path, "error", err)
		return
	}

	started := time.Now()
	outcomes := engine.ResolveAll(m, sels)
	flat := document.Flatten(m)

	restored := 0
	fmt.Printf("%s changed:\n", ev.Path)
	for i, out := range outcomes {
		printOutcome(flat, sels[i], out)
		if out.Restored() {
			restored++
		}
	}
	fmt.Printf("  %d/%d restored in %v\n", restored, len(sels), time.Since(started).Round(time.Millisecond))
}

// SchemaValidateCmd validates selector files against the wire schema.
type SchemaValidateCmd struct {
	Files []string `arg:"" help:"Selector JSON files to validate"`
}

func (c *SchemaValidateCmd) Run() error {
	failed := 0
	for _, path := range c.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", path, err)
			failed++
			continue
		}
		if err := schemadoc.Validate(data); err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("  [OK] %s\n", path)
	}

	if failed > 0 {
		return fmt.Errorf("validation failed: %d file(s)", failed)
	}
	fmt.Println("All files valid.")
	return nil
}

// SchemaShowCmd prints the selector JSON Schema.
type SchemaShowCmd struct{}

func (c *SchemaShowCmd) Run() error {
	_, err := os.Stdout.Write(schemadoc.SchemaJSON())
	return err
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("anchorctl version %s\n", version)
	fmt.Printf("  Bundle format: %s\n", bundle.Version)
	fmt.Printf("  SQLite driver: %s (%s)\n", store.DriverName(), store.DriverType())
	return nil
}

// Helper functions

// loadConfig resolves the effective configuration: file or defaults, then
// environment, then global command-line flags. It also initializes the
// process logger, so every command path goes through it first.
func loadConfig() (*config.Config, error) {
	path := CLI.Config
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if CLI.StorePath != "" {
		cfg.Store.Path = CLI.StorePath
	}
	if CLI.LogLevel != "" {
		cfg.Logging.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Logging.Format = CLI.LogFormat
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}

	initLogging(cfg)
	return cfg, nil
}

// initLogging maps the configured level and format onto the process logger.
func initLogging(cfg *config.Config) {
	level := logging.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

// openStore opens the anchor database named by the configuration.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Path)
}

// loadDocument reads and parses a document file. The returned fingerprint
// identifies the exact bytes that were parsed.
func loadDocument(path, format string) (document.Model, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.NewIO("read document", path, err)
	}

	f, err := detectFormat(path, format, data)
	if err != nil {
		return nil, "", err
	}

	var m document.Model
	if f == "xml" {
		m, err = xmldoc.Parse(data)
	} else {
		m, err = htmldoc.Parse(data)
	}
	if err != nil {
		return nil, "", err
	}
	return m, document.FingerprintBytes(data), nil
}

// detectFormat picks the document adapter: explicit flag, then file
// extension, then a content sniff for an XML declaration.
func detectFormat(path, flag string, data []byte) (string, error) {
	switch strings.ToLower(flag) {
	case "html", "xml":
		return strings.ToLower(flag), nil
	case "":
	default:
		return "", errors.NewUnsupported("document format "+flag, "supported formats are html and xml")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "html", nil
	case ".xml", ".xhtml", ".svg":
		return "xml", nil
	}

	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("<?xml")) {
		return "xml", nil
	}
	return "html", nil
}

// readSelectors loads selectors from a JSON file holding either a single
// object or an array, validating against the embedded wire schema first.
func readSelectors(path string) ([]*anchor.MultiSelector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read selectors", path, err)
	}
	if err := schemadoc.Validate(data); err != nil {
		return nil, err
	}

	var many []*anchor.MultiSelector
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one anchor.MultiSelector
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, errors.NewParse("selector JSON", path, err.Error())
	}
	return []*anchor.MultiSelector{&one}, nil
}

// writeJSON marshals v indented and writes it to path, or to stdout when
// path is empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// resolveReport is the machine-readable output of anchor resolve.
type resolveReport struct {
	Document    string          `json:"document"`
	Fingerprint string          `json:"fingerprint"`
	Results     []resolveResult `json:"results"`
}

// resolveResult is one anchor's restoration outcome.
type resolveResult struct {
	ID             string `json:"id"`
	Tier           string `json:"tier"`
	Restored       bool   `json:"restored"`
	StartOffset    int    `json:"startOffset"`
	EndOffset      int    `json:"endOffset"`
	Text           string `json:"text,omitempty"`
	ContextWarning bool   `json:"contextWarning,omitempty"`
}

// buildReport assembles the machine-readable resolve output.
func buildReport(flat *document.Flattened, docPath, fingerprint string, sels []*anchor.MultiSelector, outcomes []resolve.RestorationOutcome) resolveReport {
	report := resolveReport{Document: docPath, Fingerprint: fingerprint}
	for i, out := range outcomes {
		res := resolveResult{
			ID:       sels[i].ID,
			Tier:     string(out.Tier),
			Restored: out.Restored(),
		}
		if out.Restored() {
			start, end := spanOffsets(flat, out.Span)
			res.StartOffset, res.EndOffset = start, end
			res.Text, _ = flat.Slice(start, end)
			res.ContextWarning = out.Span.ContextWarning
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// printOutcome writes one human-readable resolution line.
func printOutcome(flat *document.Flattened, sel *anchor.MultiSelector, out resolve.RestorationOutcome) {
	id := sel.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "(no id)"
	}

	if !out.Restored() {
		fmt.Printf("  [FAIL] %s %q\n", id, truncate(sel.Text(), 40))
		return
	}

	start, end := spanOffsets(flat, out.Span)
	current, _ := flat.Slice(start, end)
	warn := ""
	if out.Span.ContextWarning {
		warn = " (context drift)"
	}
	fmt.Printf("  [OK]   %s tier=%-10s [%d,%d) %q%s\n", id, out.Tier, start, end, truncate(current, 40), warn)
}

// spanOffsets maps a resolved span back to absolute rune offsets for
// display. Resolution reports leaf-local positions; offsets are what a
// caller can act on.
func spanOffsets(flat *document.Flattened, span *resolve.ResolvedSpan) (int, int) {
	start, _ := flat.Offset(span.Start)
	end, _ := flat.Offset(span.End)
	return start, end
}

// truncate shortens s to at most n runes for display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// shortFingerprint abbreviates a document fingerprint for display.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("anchorctl"),
		kong.Description("driftanchor - drift-tolerant text anchoring for HTML and XML documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
