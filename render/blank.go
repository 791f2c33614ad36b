package render

import (
	"fmt"
)

const BlankCaption = "BLANK FORM FOR MANUAL COMPLETION"

// Block is one entry of the blank schedule. Before Draw runs the layout
// moves to a new page when Height does not fit (or always, with NewPage).
// Height 0 draws wherever the cursor is.
type Block struct {
	Name    string
	Height  float64
	NewPage bool
	Draw    func(l *Layout)
}

func (b Block) place(l *Layout) {
	switch {
	case b.NewPage:
		l.NewPage()
	case b.Height > 0:
		l.Ensure(b.Height)
	}
	b.Draw(l)
}

var (
	assessmentItems  = []string{"Biopsychosocials", "BHTEDs", "MichiCANS"}
	completionLabels = []string{"<25%", "<50%", "<75%", "<100%", "N/A"}
	iposItems        = []string{"Unsigned Documents", "PCP/ IPOS due in next 60 days"}
	coordItems       = []string{"Consents faxed within past 30 days", "Clinical Documentation Uploaded to MHWIN"}
	activityItems    = []string{
		"Billable Service Activities",
		"Face to Face",
		"Telehealth",
		"Member's not seen in 30 days",
		"Number of notes entered after 48 hours",
	}
	reviewItems = []string{
		"Annual Consents Up to date and Signed",
		"Coordination of Care Confirmation Fax",
		"Bio Up to date and signed",
		"Guardianship Current",
		"Up to date Physical",
		"Diabetes Screening",
		"Medication Review Uploaded",
		"Health and Safety Checklist Up to Date",
		"IPOS Status",
		"Goals are SMART with complete interventions",
		"The individual plan of service adequately identifies the individual's goals and preferences",
		"Authorizations entered",
		"Member/Guardian Signature on IPOS",
		"Residential/CLS Assessment",
		"Referrals for Service",
	}
	reviewColumns = []struct {
		label string
		dx    float64
	}{{"Met", 250}, {"Partially", 300}, {"Not Met", 360}, {"N/A", 420}}
)

const reviewItemHeight = 60

const acknowledgement = "By signing below, staff acknowledges they have participated in this " +
	"supervision session and reviewed the contents of this form."

// BlankSchedule is the fixed layout of the printable template
func BlankSchedule() []Block {
	return []Block{
		{Name: "basic-info", Draw: drawBasicInfo},
		{Name: "assessments", Height: 25 + float64(len(assessmentItems))*125, Draw: drawAssessments},
		{Name: "ipos", Height: 200, Draw: countSection("IPOS & Addendums", iposItems...)},
		{Name: "inservice", Height: 150, Draw: countSection("In-service", "In-services in last 30 days")},
		{Name: "coordination", Height: 200, Draw: countSection("Coordination of Care", coordItems...)},
		{Name: "guardianship", Height: 150, Draw: countSection("Guardianship", "Expiring in next 30 days")},
		{Name: "service-activities", Height: 350, Draw: drawServiceActivities},
		{Name: "case-review", NewPage: true, Draw: drawCaseReview},
		{Name: "comments", Height: 250, Draw: drawComments},
		{Name: "signatures", Height: 250, Draw: drawSignatures},
	}
}

func drawBasicInfo(l *Layout) {
	l.Doc.SetFont(font, "", 14)
	l.Doc.SetTextColor(primary)
	l.Doc.Text(l.Margin, l.Y, "BLANK TEMPLATE FOR MANUAL COMPLETION")
	l.Y += 30
	l.body()

	m := l.Margin
	for _, label := range []string{
		"Supervision Date: ",
		"Supervisor Name: ",
		"Supervisor Title: ",
		"Staff Name: ",
		"Staff Title: ",
		"Caseload Count: ",
	} {
		l.Doc.Text(m, l.Y, label)
		l.Doc.Line(m+120, l.Y, m+300, l.Y)
		l.Y += 25
	}
	l.Doc.Text(m, l.Y, "Review Type:")
	l.Doc.Rect(m+120, l.Y-10, 15, 15)
	l.Doc.Text(m+145, l.Y, "General Review")
	l.Doc.Rect(m+250, l.Y-10, 15, 15)
	l.Doc.Text(m+275, l.Y, "Client-Specific Review")
	l.Y += 40
}

func drawAssessments(l *Layout) {
	l.heading("Assessments")
	m := l.Margin
	for _, item := range assessmentItems {
		l.Doc.Text(m, l.Y, item)
		l.Y += 20
		for j, label := range completionLabels {
			x := m + 50 + float64(j)*80
			l.Doc.Rect(x, l.Y-15, 15, 15)
			l.Doc.Text(x+20, l.Y, label)
		}
		l.Y += 20
		commentBox(l, 60, 80)
	}
}

// commentBox draws "Comments:" and a box of height h, advancing Y by 5+advance
func commentBox(l *Layout, h, advance float64) {
	l.Doc.Text(l.Margin, l.Y, "Comments:")
	l.Y += 5
	l.Doc.Rect(l.Margin, l.Y, l.ContentWidth(), h)
	l.Y += advance
}

func countItem(l *Layout, item string) {
	m := l.Margin
	l.Doc.Text(m, l.Y, item)
	l.Doc.Text(m+250, l.Y, "Count:")
	l.Doc.Rect(m+300, l.Y-15, 60, 20)
	l.Y += 30
	commentBox(l, 40, 60)
}

func countSection(title string, items ...string) func(*Layout) {
	return func(l *Layout) {
		l.heading(title)
		for _, item := range items {
			countItem(l, item)
		}
	}
}

func drawServiceActivities(l *Layout) {
	l.heading("Service Activities")
	l.Doc.Text(l.Margin, l.Y, "Month in Review")
	l.Y += 20
	for _, item := range activityItems {
		countItem(l, item)
	}
}

func reviewHeader(l *Layout) {
	l.Doc.Text(l.Margin, l.Y, "Item")
	for _, c := range reviewColumns {
		l.Doc.Text(l.Margin+c.dx, l.Y, c.label)
	}
	l.Y += 20
}

func drawCaseReview(l *Layout) {
	l.heading("Case Review")
	m := l.Margin
	l.Doc.Text(m, l.Y, "Client #:")
	l.Doc.Line(m+80, l.Y, m+200, l.Y)
	l.Doc.Text(m+220, l.Y, "IPOS Active Date:")
	l.Doc.Line(m+330, l.Y, m+450, l.Y)
	l.Y += 30

	reviewHeader(l)
	for _, item := range reviewItems {
		// long items wrap within the column left of the checkboxes
		lines := l.Doc.SplitText(item, 240)
		extra := float64(max(len(lines)-1, 0)) * 14
		if l.Ensure(max(reviewItemHeight, 65+extra)) {
			reviewHeader(l)
		}
		for i, s := range lines {
			l.Doc.Text(m, l.Y+float64(i)*14, s)
		}
		for _, c := range reviewColumns {
			l.Doc.Rect(m+c.dx, l.Y-10, 15, 15)
		}
		l.Y += 30 + extra
		commentBox(l, 30, 45)
	}
}

func drawComments(l *Layout) {
	l.heading("Additional Comments")
	l.Doc.Rect(l.Margin, l.Y, l.ContentWidth(), 200)
	l.Y += 220
}

func drawSignatures(l *Layout) {
	l.heading("Signatures")
	for i, s := range l.Doc.SplitText(acknowledgement, l.ContentWidth()) {
		l.Doc.Text(l.Margin, l.Y+float64(i)*14, s)
	}
	l.Y += 30
	signatureBlock(l, "Staff Signature:")
	l.Y += 100
	signatureBlock(l, "Supervisor Signature:")
	l.Y += 100
}

func signatureBlock(l *Layout, label string) {
	m := l.Margin
	l.Doc.Text(m, l.Y, label)
	l.Y += 10
	l.Doc.Rect(m, l.Y, 250, 80)
	l.Doc.Text(m+270, l.Y+40, "Date:")
	l.Doc.Line(m+310, l.Y+40, m+450, l.Y+40)
}

func pageLabel(i, n int) string {
	return fmt.Sprintf("Page %d of %d", i, n)
}
