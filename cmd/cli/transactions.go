package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/rs/zerolog"
)

const commandTimeout = 2 * time.Minute

func runInit(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	fmt.Printf("Data file:     %s (%d transactions)\n", s.book.Store().Location(), s.book.Transactions().Len())
	fmt.Printf("Settings file: %s\n", cfg.SettingsFile)
}

func runList(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	year := fs.Int("year", 0, "Only transactions added in this year")
	month := fs.Int("month", 0, "Only transactions added in this month (1-12)")
	all := fs.Bool("all", false, "Include hidden transactions")
	sortBy := fs.String("sort", "date_added", "Field to sort by")
	fs.Parse(args)

	field, ok := domain.FieldByName(*sortBy)
	if !ok {
		log.Fatal().Str("field", *sortBy).Msg("Unknown sort field")
	}
	if *month < 0 || *month > 12 {
		log.Fatal().Int("month", *month).Msg("Month must be between 1 and 12")
	}

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	s.book.Do(func(c *ledger.Collection) error {
		view := c
		if *year > 0 {
			view = view.SelectByYear(domain.FieldDateAdded, *year)
		}
		if *month > 0 {
			view = view.SelectByMonth(domain.FieldDateAdded, time.Month(*month))
		}
		if !*all {
			view = view.SelectNonHidden(time.Now())
		}
		view = view.SortBy(field)

		fmt.Printf("%5s  %-10s  %10s  %-16s  %-28s  %s\n", "ID", "Added", "Price", "Category", "Transactor", "Description")
		for _, t := range view.All() {
			fmt.Printf("%5d  %-10s  %10s  %-16s  %-28s  %s\n",
				t.ID(),
				xmlcodec.FormatValue(t.Get(domain.FieldDateAdded)),
				t.Price().StringFixed(2),
				t.Category(),
				t.Transactor(),
				t.Description(),
			)
		}
		fmt.Printf("\n%d transactions, total %s\n", view.Len(), view.TotalPrice().StringFixed(2))
		return nil
	})
}

func runShow(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	id := fs.Int64("id", -1, "Transaction ID")
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	s.book.Do(func(c *ledger.Collection) error {
		t := mustGet(log, c, *id)
		fmt.Printf("\n=== Transaction %d ===\n", t.ID())
		for _, f := range t.PresentFields() {
			fmt.Printf("%-20s %s\n", f.String()+":", xmlcodec.FormatValue(t.Get(f)))
		}
		if gross, ok := t.GrossPay(); ok {
			fmt.Printf("%-20s %s\n", "gross pay:", gross.StringFixed(2))
		}
		return nil
	})
}

func runAdd(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	values := make(map[domain.Field]*string)
	for _, f := range domain.Fields() {
		values[f] = fs.String(flagName(f), "", fieldUsage(f))
	}
	fs.Parse(args)

	if *values[domain.FieldDateAdded] == "" {
		*values[domain.FieldDateAdded] = time.Now().Format(xmlcodec.DateLayout)
	}

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	var added *domain.Transaction
	err := s.book.Do(func(c *ledger.Collection) error {
		t := domain.NewTransaction(c.NewID())
		for _, f := range domain.Fields() {
			if err := setField(t, f, *values[f]); err != nil {
				return err
			}
		}
		if missing := t.MissingFields(); len(missing) > 0 {
			return fmt.Errorf("missing required fields %v", missing)
		}
		c.Add(t)
		added = t
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add transaction")
	}
	s.commit()

	fmt.Printf("Added transaction %d: %s\n", added.ID(), added)
}

func runSet(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	id := fs.Int64("id", -1, "Transaction ID")
	name := fs.String("field", "", "Field name, e.g. price or payback_transactor")
	value := fs.String("value", "", "New value; empty clears the field")
	fs.Parse(args)

	field, ok := domain.FieldByName(*name)
	if !ok {
		log.Fatal().Str("field", *name).Msg("Unknown field")
	}

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	err := s.book.Do(func(c *ledger.Collection) error {
		return setField(mustGet(log, c, *id), field, *value)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to change transaction")
	}
	s.commit()

	fmt.Printf("Transaction %d: %s = %q\n", *id, field, *value)
}

func runDelete(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", -1, "Transaction ID")
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	s.book.Do(func(c *ledger.Collection) error {
		c.Delete(mustGet(log, c, *id))
		return nil
	})
	s.commit()

	fmt.Printf("Deleted transaction %d\n", *id)
}

func runDuplicate(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("duplicate", flag.ExitOnError)
	id := fs.Int64("id", -1, "Transaction ID")
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	var copyID int64
	s.book.Do(func(c *ledger.Collection) error {
		cp := c.Duplicate(mustGet(log, c, *id))
		c.Add(cp)
		copyID = cp.ID()
		return nil
	})
	s.commit()

	fmt.Printf("Copied transaction %d to %d\n", *id, copyID)
}

func mustGet(log zerolog.Logger, c *ledger.Collection, id int64) *domain.Transaction {
	t := c.Get(id)
	if t == nil {
		log.Fatal().Int64("transaction_id", id).Msg("Transaction not found")
	}
	return t
}

func setField(t *domain.Transaction, f domain.Field, raw string) error {
	if raw == "" && t.Get(f) == nil {
		return nil
	}
	v, err := xmlcodec.ParseValue(f, raw, time.Local)
	if err != nil {
		return err
	}
	return t.Set(f, v)
}

func flagName(f domain.Field) string {
	return strings.ReplaceAll(f.String(), "_", "-")
}

func fieldUsage(f domain.Field) string {
	switch f.Type() {
	case domain.TypeDate:
		return fmt.Sprintf("%s (dd/mm/yyyy)", f)
	case domain.TypeCategoryString:
		return fmt.Sprintf("%s (\"Category > Value\")", f)
	case domain.TypeFlag:
		return fmt.Sprintf("%s (true/false)", f)
	}
	return f.String()
}
