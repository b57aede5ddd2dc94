package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// Event is one weekly recurring calendar entry.
type Event struct {
	UID         string
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
	Until       time.Time
}

// Calendar groups events under one product id.
type Calendar struct {
	Name   string
	Events []Event
}

// ICSExporter renders calendars in iCalendar format.
type ICSExporter struct {
	now func() time.Time
}

// NewICSExporter constructs an iCalendar exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{now: time.Now}
}

// Render serialises the calendar. Events recur weekly until their Until time.
func (e *ICSExporter) Render(c Calendar) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//timetable-api//" + c.Name + "//EN")

	stamp := e.now().UTC()
	for _, ev := range c.Events {
		if !ev.Start.Before(ev.End) {
			return nil, fmt.Errorf("event %s ends before it starts", ev.UID)
		}
		event := cal.AddEvent(ev.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(ev.Start)
		event.SetEndAt(ev.End)
		event.SetSummary(ev.Summary)
		if ev.Location != "" {
			event.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			event.SetDescription(ev.Description)
		}
		if !ev.Until.IsZero() {
			event.AddRrule("FREQ=WEEKLY;UNTIL=" + ev.Until.UTC().Format("20060102T150405Z"))
		}
	}
	return []byte(cal.Serialize()), nil
}
