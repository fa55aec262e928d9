package normalize

import "strings"

// DefaultStatusLabel stands in for a blank status_delivery.
const DefaultStatusLabel = "No Status"

// StandardStatusLabels is the canonical status_delivery vocabulary, in
// report order.
var StandardStatusLabels = []string{
	"Prepare Vehicle",
	"On the way",
	"On Site",
	"POD",
	"Waiting PIC Feedback",
	"RePlan MOS due to LSP Delay",
	"RePlan MOS Project",
	"Cancel MOS",
	"Close by RN",
	"New MOS",
	"ARRIVED AT WH",
	"DEPARTED FROM WH",
	"ARRIVED AT XD/PM",
	"DEPARTED FROM XD/PM",
	"ARRIVED AT SITE",
	DefaultStatusLabel,
}

var statusSynonyms = map[string]string{
	"arrive at warehouse":     "ARRIVED AT WH",
	"transporting from wh":    "DEPARTED FROM WH",
	"transporting from xd/pm": "DEPARTED FROM XD/PM",
}

var statusLookup = buildStatusLookup()

func buildStatusLookup() map[string]string {
	lookup := make(map[string]string, len(StandardStatusLabels)+len(statusSynonyms))
	for _, label := range StandardStatusLabels {
		lookup[strings.ToLower(label)] = label
	}
	for synonym, label := range statusSynonyms {
		lookup[synonym] = label
	}
	return lookup
}

// StatusLabel collapses whitespace in raw and maps it to its canonical
// casing. Unknown labels come back collapsed. Blank input yields nil.
func StatusLabel(raw string) *string {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" {
		return nil
	}
	if canonical, ok := statusLookup[strings.ToLower(collapsed)]; ok {
		return &canonical
	}
	return &collapsed
}

// StatusLabelOrDefault is StatusLabel with DefaultStatusLabel for blanks.
func StatusLabelOrDefault(raw string) string {
	if label := StatusLabel(raw); label != nil {
		return *label
	}
	return DefaultStatusLabel
}

// ValidStatuses are the operational statuses accepted from drivers.
var ValidStatuses = []string{
	"PREPARE VEHICLE",
	"ON THE WAY",
	"ON SITE",
	"POD",
	"REPLAN MOS PROJECT",
	"WAITING PIC FEEDBACK",
	"REPLAN MOS DUE TO LSP DELAY",
	"CLOSE BY RN",
	"CANCEL MOS",
	"NO STATUS",
	"NEW MOS",
	"ARRIVED AT WH",
	"DEPARTED FROM WH",
	"DEPARTED FROM XD/PM",
	"TRANSPORTING FROM WH",
	"ARRIVED AT XD/PM",
	"TRANSPORTING FROM XD/PM",
	"ARRIVED AT SITE",
	"开始运输",
	"运输中",
	"已到达",
	"过夜",
}

var validStatusSet = toSet(ValidStatuses)

// ArrivalStatuses trigger the actual arrival timestamp on write-back.
var ArrivalStatuses = toSet([]string{"ARRIVED AT XD/PM", "ARRIVED AT SITE", "POD"})

// DepartureStatuses trigger the actual departure timestamp on write-back.
var DepartureStatuses = toSet([]string{
	"TRANSPORTING FROM WH",
	"TRANSPORTING FROM XD/PM",
	"DEPARTED FROM WH",
	"DEPARTED FROM XD/PM",
})

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// IsValidStatus reports whether status is an accepted operational status.
func IsValidStatus(status string) bool {
	_, ok := validStatusSet[status]
	return ok
}

// IsArrival reports whether status stamps the arrival time.
func IsArrival(status string) bool {
	_, ok := ArrivalStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// IsDeparture reports whether status stamps the departure time.
func IsDeparture(status string) bool {
	_, ok := DepartureStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// DeliveryStatusFor picks the status_delivery written with an API update.
func DeliveryStatusFor(status, explicit string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed
	}
	if status == "ARRIVED AT SITE" {
		return "On Site"
	}
	return "On The Way"
}
