package prompt

import (
	"go.uber.org/zap"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
)

// DefaultMaxTries is the number of interactive attempts before giving up
const DefaultMaxTries = 3

// Request describes one value to collect
type Request struct {
	// Owner names the requesting component in messages ("global", "mutation")
	Owner string
	// Key identifies the value in the silent source
	Key string
	// Prompt is shown to the operator
	Prompt string
	// Help is printed before each prompt when set
	Help string
	// Validate checks the effective value; nil accepts everything
	Validate func(string) bool
	// Expect describes a valid value for retry messages
	Expect string
	// Default replaces empty input when HasDefault is set
	Default    string
	HasDefault bool
}

// Collector gathers values interactively or from a silent source
type Collector struct {
	reader   LineReader
	printer  Printer
	silent   Values
	isSilent bool
	maxTries int
	logger   *zap.Logger
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithSilentValues switches the collector to silent mode
func WithSilentValues(values Values) CollectorOption {
	return func(c *Collector) {
		c.silent = values
		c.isSilent = true
	}
}

// WithMaxTries overrides DefaultMaxTries
func WithMaxTries(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollector creates a collector reading from reader and printing to printer
func NewCollector(reader LineReader, printer Printer, opts ...CollectorOption) *Collector {
	c := &Collector{
		reader:   reader,
		printer:  printer,
		maxTries: DefaultMaxTries,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Silent reports whether values come from the silent source
func (c *Collector) Silent() bool {
	return c.isSilent
}

// Printer returns the collector's printer
func (c *Collector) Printer() Printer {
	return c.printer
}

// Print prints msg unless the collector is silent
func (c *Collector) Print(msg string) {
	if c.isSilent || c.printer == nil {
		return
	}
	c.printer.Println(msg)
}

// Collect returns a value for req
func (c *Collector) Collect(req Request) (string, error) {
	if c.isSilent {
		return c.collectSilent(req)
	}
	return c.collectInteractive(req)
}

func (c *Collector) collectSilent(req Request) (string, error) {
	value, ok := c.silent.Lookup(req.Key)
	if !ok || value == "" {
		if req.HasDefault {
			c.logger.Debug("silent value absent, using default",
				zap.String("owner", req.Owner), zap.String("key", req.Key))
			value = req.Default
		} else if !ok {
			return "", nerrors.Newf(nerrors.ESilentValueMissing,
				"silent mode: no value supplied for %s %q", req.Owner, req.Key).
				WithDetail("key", req.Key)
		}
	}

	if req.Validate != nil && !req.Validate(value) {
		return "", nerrors.Newf(nerrors.ESilentValueInvalid,
			"silent mode: value %q for %s %q is not %s", value, req.Owner, req.Key, expectOf(req)).
			WithDetail("key", req.Key)
	}
	return value, nil
}

func (c *Collector) collectInteractive(req Request) (string, error) {
	for try := 1; ; try++ {
		if req.Help != "" {
			c.Print(req.Help)
		}

		input, err := c.reader.ReadLine(req.Prompt)
		if err != nil {
			return "", err
		}

		value := input
		if value == "" && req.HasDefault {
			value = req.Default
		}

		if req.Validate == nil || req.Validate(value) {
			return value, nil
		}

		c.logger.Debug("input failed validation",
			zap.String("owner", req.Owner), zap.String("key", req.Key), zap.Int("try", try))

		if try >= c.maxTries {
			return "", nerrors.Newf(nerrors.ETooManyInputTries,
				"too many tries for %s %q", req.Owner, req.Key).
				WithDetail("key", req.Key)
		}
		c.Print("Invalid input, expected " + expectOf(req) + ". Please try again.")
	}
}

func expectOf(req Request) string {
	if req.Expect != "" {
		return req.Expect
	}
	return "a valid value"
}
