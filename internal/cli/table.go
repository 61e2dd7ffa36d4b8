package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

type roomRow struct {
	ID        int64     `json:"id"`
	Code      string    `json:"roomCode"`
	CreatorID int64     `json:"creatorId"`
	GuestID   int64     `json:"guestId"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// renderRooms prints rooms as a bordered table; an open room shows "-" as guest.
func renderRooms(w io.Writer, rooms []roomRow) error {
	if len(rooms) == 0 {
		_, err := fmt.Fprintln(w, "no rooms")
		return err
	}
	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		guest := "-"
		if r.GuestID > 0 {
			guest = strconv.FormatInt(r.GuestID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Code,
			strconv.FormatInt(r.CreatorID, 10),
			guest,
			strconv.FormatBool(r.Active),
			r.CreatedAt.Local().Format(time.DateTime),
		})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CODE", "CREATOR", "GUEST", "ACTIVE", "CREATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
