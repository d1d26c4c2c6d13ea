package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

const (
	// DigestComments is how many of the most recent responses are sampled.
	DigestComments = 15
	// DigestReflections is how many of the most recent reflections the admin digest carries.
	DigestReflections = 10
)

// CommentPair is one sampled liked/disliked pair.
type CommentPair struct {
	Liked    string `json:"liked"`
	Disliked string `json:"disliked"`
}

// ReflectionNote is one sampled teacher reflection.
type ReflectionNote struct {
	FullName  string `json:"full_name"`
	WentWell  string `json:"went_well"`
	Struggled string `json:"struggled"`
}

// Digest is the compact text context handed to the assistant.
type Digest struct {
	Total       int              `json:"total"`
	Cards       []Card           `json:"cards"`
	Comments    []CommentPair    `json:"comments"`
	Reflections []ReflectionNote `json:"reflections,omitempty"`
}

// Summarize builds a digest over ds. Percentages cover every record; comments
// come from the DigestComments most recent dated responses, skipping pairs
// that are both empty. Reflections are included only when withReflections.
func Summarize(ds *survey.Dataset, withReflections bool) *Digest {
	d := &Digest{
		Total: len(ds.Students),
		Cards: Overall(ds.Students, survey.ChartMetrics).Metrics,
	}
	for _, r := range recentStudents(ds.Students, DigestComments) {
		if r.LikedText == "" && r.DislikedText == "" {
			continue
		}
		d.Comments = append(d.Comments, CommentPair{Liked: r.LikedText, Disliked: r.DislikedText})
	}
	if withReflections {
		for _, r := range recentReflections(ds.Reflections, DigestReflections) {
			d.Reflections = append(d.Reflections, ReflectionNote{FullName: r.FullName, WentWell: r.WentWell, Struggled: r.Struggled})
		}
	}
	return d
}

func recentStudents(in []survey.StudentResponse, n int) []survey.StudentResponse {
	dated := make([]survey.StudentResponse, 0, len(in))
	for _, r := range in {
		if r.HasTimestamp() {
			dated = append(dated, r)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Timestamp.After(dated[j].Timestamp) })
	if len(dated) > n {
		dated = dated[:n]
	}
	return dated
}

func recentReflections(in []survey.TeacherReflection, n int) []survey.TeacherReflection {
	dated := make([]survey.TeacherReflection, 0, len(in))
	for _, r := range in {
		if r.HasTimestamp() {
			dated = append(dated, r)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Timestamp.After(dated[j].Timestamp) })
	if len(dated) > n {
		dated = dated[:n]
	}
	return dated
}

// Text renders the digest as the data block of an assistant prompt.
func (d *Digest) Text() string {
	var b strings.Builder
	b.WriteString("Analyze student exit ticket data.\n\n")
	b.WriteString(fmt.Sprintf("DATA (All Time, n=%d):\n", d.Total))
	for _, c := range d.Cards {
		b.WriteString(fmt.Sprintf("- %s: %.0f%%\n", c.Name, c.Percentage))
	}
	b.WriteString("\nSample Student Comments:\n")
	for _, c := range d.Comments {
		b.WriteString(fmt.Sprintf("• Liked: %q | Disliked: %q\n", c.Liked, c.Disliked))
	}
	if len(d.Reflections) > 0 {
		b.WriteString("\nRecent Teacher Reflections:\n")
		for _, r := range d.Reflections {
			b.WriteString(fmt.Sprintf("• %s: Went well: %q | Struggled: %q\n", r.FullName, r.WentWell, r.Struggled))
		}
	}
	return b.String()
}

// BuildPrompt joins the digest and the user's question into one prompt.
func BuildPrompt(d *Digest, question string) string {
	var b strings.Builder
	b.WriteString(d.Text())
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nWrite 2-3 short paragraphs. Just dive in - NO introductory sentences. ")
	b.WriteString("Focus on what students actually said. DO NOT write summary sentences or conclusions.")
	return b.String()
}
