package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/school"
	"github.com/evcraddock/mela/internal/wanted"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab separated rows under a header and a dashed separator.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	sep := make([]string, len(header))
	for i, h := range header {
		sep[i] = strings.Repeat("-", len(h))
	}
	for _, row := range append([][]string{header, sep}, rows...) {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

func printListingTable(w io.Writer, listings []*listing.Listing) error {
	if len(listings) == 0 {
		_, err := fmt.Fprintln(w, "No listings found.")
		return err
	}

	rows := make([][]string, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, []string{
			l.ID, truncate(l.Title, 40), string(l.Category), formatPrice(l.PriceEUR), l.Locality, string(l.Status),
		})
	}
	if err := table(w, []string{"ID", "TITLE", "CATEGORY", "PRICE", "LOCALITY", "STATUS"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal: %d listings\n", len(listings))
	return err
}

func printListing(w io.Writer, l *listing.Listing) {
	fmt.Fprintf(w, "%s\n", l.Title)
	fmt.Fprintf(w, "  ID:        %s\n", l.ID)
	fmt.Fprintf(w, "  Price:     %s", formatPrice(l.PriceEUR))
	if l.AllowOffer {
		fmt.Fprint(w, " (offers welcome)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Category:  %s\n", l.Category)
	fmt.Fprintf(w, "  Condition: %s\n", l.Condition)
	fmt.Fprintf(w, "  Locality:  %s\n", l.Locality)
	if l.LocationText != "" {
		fmt.Fprintf(w, "  Location:  %s\n", l.LocationText)
	}
	if l.SchoolID != nil {
		fmt.Fprintf(w, "  School:    %s\n", *l.SchoolID)
	}
	fmt.Fprintf(w, "  Status:    %s\n", l.Status)
	fmt.Fprintf(w, "  Views:     %d  Favorites: %d\n", l.ViewsCount, l.FavoritesCount)
	fmt.Fprintf(w, "  Listed:    %s\n", l.CreatedAt.Format("2006-01-02 15:04"))
	if l.Description != "" {
		fmt.Fprintf(w, "\n%s\n", l.Description)
	}
}

func printWantedTable(w io.Writer, ads []*wanted.Ad) error {
	if len(ads) == 0 {
		_, err := fmt.Fprintln(w, "No wanted ads found.")
		return err
	}

	rows := make([][]string, 0, len(ads))
	for _, a := range ads {
		budget := "-"
		if a.BudgetEUR != nil {
			budget = formatPrice(*a.BudgetEUR)
		}
		rows = append(rows, []string{a.ID, truncate(a.Title, 40), string(a.Category), budget, a.Locality})
	}
	return table(w, []string{"ID", "TITLE", "CATEGORY", "BUDGET", "LOCALITY"}, rows)
}

func printSchoolTable(w io.Writer, schools []*school.School) error {
	if len(schools) == 0 {
		_, err := fmt.Fprintln(w, "No schools found.")
		return err
	}

	rows := make([][]string, 0, len(schools))
	for _, sc := range schools {
		houses := "-"
		if len(sc.Houses) > 0 {
			houses = strings.Join(sc.Houses, ", ")
		}
		rows = append(rows, []string{sc.ID, truncate(sc.Name, 40), sc.City, houses})
	}
	return table(w, []string{"ID", "NAME", "CITY", "HOUSES"}, rows)
}

func printNotificationTable(w io.Writer, notes []*notification.Notification) error {
	if len(notes) == 0 {
		_, err := fmt.Fprintln(w, "No notifications.")
		return err
	}

	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		read := "*"
		if n.IsRead {
			read = ""
		}
		rows = append(rows, []string{read, n.ID, string(n.Type), truncate(n.Title, 50), n.CreatedAt.Format("2006-01-02 15:04")})
	}
	return table(w, []string{"NEW", "ID", "TYPE", "TITLE", "CREATED"}, rows)
}

// formatPrice renders an amount in euro with thousands separators.
func formatPrice(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, cents, _ := strings.Cut(s, ".")

	var parts []string
	for len(whole) > 3 {
		parts = append([]string{whole[len(whole)-3:]}, parts...)
		whole = whole[:len(whole)-3]
	}
	parts = append([]string{whole}, parts...)

	return sign + "€" + strings.Join(parts, ",") + "." + cents
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
