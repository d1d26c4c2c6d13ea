package assistant

// FAQ is a canned question offered while the chat history is empty.
type FAQ struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Question string `json:"question"`
}

// FAQs are the starter questions, in display order.
var FAQs = []FAQ{
	{Key: "patterns", Label: "What patterns do you see?", Question: "What patterns do you see in the data?"},
	{Key: "choice", Label: "How's student choice?", Question: "How are students responding to having choice?"},
	{Key: "confusing", Label: "What's confusing students?", Question: "What topics or tasks are confusing students the most?"},
	{Key: "engagement", Label: "How's engagement?", Question: "How are engagement levels looking?"},
}

// LookupFAQ returns the FAQ with key.
func LookupFAQ(key string) (FAQ, bool) {
	for _, f := range FAQs {
		if f.Key == key {
			return f, true
		}
	}
	return FAQ{}, false
}
