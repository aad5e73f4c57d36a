package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

const productID = "-//slotwise//slot export//EN"

// Export writes slots as an iCalendar with one event per slot. A running
// slot ends at now, clamped to its day like every other duration.
func Export(w io.Writer, slots []store.Slot, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, s := range slots {
		cal.Children = append(cal.Children, slotEvent(s, now).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

func slotEvent(s store.Slot, now time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, fmt.Sprintf("slot-%d@slotwise", s.ID))
	event.Props.SetDateTime(ical.PropDateTimeStamp, s.CreatedAt.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, s.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, s.Start.Add(s.Duration(now)).UTC())
	event.Props.SetText(ical.PropSummary, Summary(s.Category))
	event.Props.SetText(ical.PropCategories, string(s.Category))

	if s.End == nil {
		event.Props.SetText(ical.PropStatus, "TENTATIVE")
	}
	if s.Location != nil {
		// GEO is a structured value; SetText would escape the separator
		event.Props.Set(&ical.Prop{
			Name:   ical.PropGeo,
			Params: make(ical.Params),
			Value:  fmt.Sprintf("%.6f;%.6f", s.Location.Latitude, s.Location.Longitude),
		})
	}

	var notes []string
	if s.CategoryWasSetByUser {
		notes = append(notes, "set by user")
	}
	if s.SmartGuessID != "" {
		notes = append(notes, "smart guess "+s.SmartGuessID)
	}
	if len(notes) > 0 {
		event.Props.SetText(ical.PropDescription, strings.Join(notes, ", "))
	}
	return event
}

// Summary is the human title of a category.
func Summary(c timeline.Category) string {
	if c == "" {
		c = timeline.Unknown
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}
