package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

func TestSummarize_RecentCommentsOnly(t *testing.T) {
	var recs []survey.StudentResponse
	for i := 0; i < 20; i++ {
		r := resp("walker", survey.TaskT1, dayN(i))
		r.LikedText = fmt.Sprintf("liked-%d", i)
		recs = append(recs, r)
	}
	// undated rows never make it into the sample
	recs = append(recs, survey.StudentResponse{TeacherKey: "walker", LikedText: "undated"})
	// an empty pair among the most recent is dropped
	recs[19].LikedText = ""

	d := Summarize(&survey.Dataset{Students: recs}, false)
	if d.Total != 21 {
		t.Fatalf("total: %d", d.Total)
	}
	if len(d.Comments) != DigestComments-1 {
		t.Fatalf("want %d comments, got %d", DigestComments-1, len(d.Comments))
	}
	if d.Comments[0].Liked != "liked-18" {
		t.Fatalf("most recent first, got %q", d.Comments[0].Liked)
	}
	text := d.Text()
	if strings.Contains(text, "liked-4\"") || strings.Contains(text, "undated") {
		t.Fatalf("old or undated comment leaked:\n%s", text)
	}
	if strings.Contains(text, "Recent Teacher Reflections") {
		t.Fatalf("non-admin digest must not carry reflections")
	}
}

func TestSummarize_AdminReflections(t *testing.T) {
	var refl []survey.TeacherReflection
	for i := 0; i < 12; i++ {
		refl = append(refl, survey.TeacherReflection{
			Timestamp: dayN(i), FullName: fmt.Sprintf("Teacher %d", i), WentWell: "groups", Struggled: "time",
		})
	}
	d := Summarize(&survey.Dataset{Reflections: refl}, true)
	if len(d.Reflections) != DigestReflections {
		t.Fatalf("want %d reflections, got %d", DigestReflections, len(d.Reflections))
	}
	if d.Reflections[0].FullName != "Teacher 11" {
		t.Fatalf("most recent first, got %q", d.Reflections[0].FullName)
	}
	if !strings.Contains(d.Text(), "Recent Teacher Reflections:") {
		t.Fatalf("missing reflections section")
	}
}

func TestBuildPrompt(t *testing.T) {
	recs := []survey.StudentResponse{
		{Timestamp: dayN(1), Engaged: "Yes", LikedText: "the lab", DislikedText: "the noise"},
		{Timestamp: dayN(2), Engaged: "No"},
	}
	p := BuildPrompt(Summarize(&survey.Dataset{Students: recs}, false), "  How's engagement?  ")
	for _, want := range []string{
		"DATA (All Time, n=2):",
		"- Engaged: 50%",
		"- Confused: 0%",
		`• Liked: "the lab" | Disliked: "the noise"`,
		"Question: How's engagement?\n",
		"Write 2-3 short paragraphs.",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}
