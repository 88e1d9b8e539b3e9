package main

import (
	"errors"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/rs/zerolog"
)

func runStats(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	year := fs.Int("year", 0, "Only transactions added in this year")
	by := fs.String("by", "category", "Group by category, month, transactor or payment")
	exceptional := fs.Bool("exceptional", false, "Include exceptional transactions")
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	s.book.Do(func(c *ledger.Collection) error {
		view := c
		if !*exceptional {
			view = view.SelectUnexceptional()
		}
		if *year > 0 {
			view = view.SelectByYear(domain.FieldDateAdded, *year)
		}

		var keys []string
		groups := make(map[string]ledger.Totals)
		switch *by {
		case "category":
			groups = view.GroupPriceByCategory()
		case "transactor":
			groups = view.GroupPriceByTransactor()
		case "payment":
			groups = view.GroupPriceByPaymentMethod()
		case "month":
			byMonth := view.GroupPriceByMonth()
			for m := time.January; m <= time.December; m++ {
				if t, ok := byMonth[m]; ok {
					keys = append(keys, m.String())
					groups[m.String()] = t
				}
			}
		default:
			log.Fatal().Str("by", *by).Msg("Unknown grouping, use category, month, transactor or payment")
		}
		if keys == nil {
			for k := range groups {
				keys = append(keys, k)
			}
			sort.Strings(keys)
		}

		fmt.Printf("%-30s  %12s  %12s  %12s\n", *by, "Income", "Expense", "Net")
		for _, k := range keys {
			t := groups[k]
			fmt.Printf("%-30s  %12s  %12s  %12s\n", k, t.Income.StringFixed(2), t.Expense.StringFixed(2), t.Net().StringFixed(2))
		}
		fmt.Printf("\nTotal: %s over %d transactions\n", view.TotalPrice().StringFixed(2), view.Len())
		return nil
	})
}

func runLoans(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("loans", flag.ExitOnError)
	settle := fs.String("settle", "", "Close the loans with this transactor (\"Category > Value\") once they balance out")
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	if *settle != "" {
		who, ok := domain.ParseCategoryString(*settle)
		if !ok {
			log.Fatal().Str("transactor", *settle).Msg("Transactor must look like \"Category > Value\"")
		}
		var settled int
		err := s.book.Do(func(c *ledger.Collection) error {
			var err error
			settled, err = c.SettleLoans(who)
			return err
		})
		if errors.Is(err, ledger.ErrOutstandingBalance) {
			log.Fatal().Err(err).Msg("Loans do not balance out yet")
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to settle loans")
		}
		s.commit()
		fmt.Printf("Settled %d loans with %s\n", settled, who)
		return
	}

	s.book.Do(func(c *ledger.Collection) error {
		balances := c.LoanBalances()
		if len(balances) == 0 {
			fmt.Println("No open loans.")
			return nil
		}
		fmt.Printf("%-30s  %12s  %5s\n", "Transactor", "Balance", "Loans")
		for _, b := range balances {
			fmt.Printf("%-30s  %12s  %5d\n", b.Transactor, b.Balance.StringFixed(2), b.Count)
		}
		return nil
	})
}

func runJobs(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	year := fs.Int("year", 0, "Only jobs worked in this year")
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	s.book.Do(func(c *ledger.Collection) error {
		view := c.Jobs()
		if *year > 0 {
			view = view.SelectByYear(domain.FieldJobDate, *year)
		}
		view.SortInPlace(domain.FieldJobDate)

		fmt.Printf("%5s  %-10s  %6s  %8s  %10s  %10s  %s\n", "ID", "Worked", "Hours", "Wage", "Gross", "Net", "Transactor")
		for _, t := range view.All() {
			hours, _ := t.Decimal(domain.FieldJobHours)
			wage, _ := t.Decimal(domain.FieldJobWage)
			gross, _ := t.GrossPay()
			fmt.Printf("%5d  %-10s  %6s  %8s  %10s  %10s  %s\n",
				t.ID(),
				xmlcodec.FormatValue(t.Get(domain.FieldJobDate)),
				hours.String(),
				wage.StringFixed(2),
				gross.StringFixed(2),
				t.Price().StringFixed(2),
				t.Transactor(),
			)
		}

		sum := view.JobSummary()
		fmt.Printf("\n%d jobs, %s hours, gross %s, net %s\n",
			sum.Count, sum.Hours.String(), sum.GrossPay.StringFixed(2), sum.NetPay.StringFixed(2))
		return nil
	})
}
