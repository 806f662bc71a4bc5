package usecase

// Selectors locate the parts of the calendar and player pages.
type Selectors struct {
	ListToggle  string
	Group       string
	GroupToggle string
	Entry       string
	EntryReady  string
	Date        string
	Title       string
	PlayerLink  string
	Player      string
	PlayerFile  string // attribute of Player holding the file name
	Duration    string
}

// DefaultSelectors matches the eScribe meetings calendar and the ISI player.
func DefaultSelectors() Selectors {
	return Selectors{
		ListToggle:  ".past-meetings .list-view-toggle",
		Group:       ".MeetingTypeList",
		GroupToggle: "a.PastMeetingTypesName",
		Entry:       ".calendar-item",
		EntryReady:  ".meeting-header",
		Date:        ".meeting-date",
		Title:       ".meeting-title",
		PlayerLink:  `.resource-list a[href*="/Players/ISIStandAlonePlayer.aspx?"]`,
		Player:      "#isi_player",
		PlayerFile:  "data-file_name",
		Duration:    ".fp-duration",
	}
}
