package server

import "net/http"

// PresetVideo is a curated demo video for quick testing.
type PresetVideo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Channel      string   `json:"channel"`
	Duration     int      `json:"duration_seconds"`
	ThumbnailURL string   `json:"thumbnail_url"`
	VideoURL     string   `json:"video_url"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
}

// presetVideos are hand-picked: educational AI content, a spread of lengths,
// well-known speakers, likely already cached.
var presetVideos = []PresetVideo{
	{
		ID:           "zjkBMFhNj_g",
		Title:        "Intro to Large Language Models",
		Channel:      "Andrej Karpathy",
		Duration:     3588,
		ThumbnailURL: "https://i.ytimg.com/vi/zjkBMFhNj_g/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=zjkBMFhNj_g",
		Description:  "Comprehensive 1-hour introduction to LLMs by renowned AI researcher Andrej Karpathy. Covers fundamentals, training, and applications.",
		Tags:         []string{"LLM", "AI Fundamentals", "Deep Learning"},
	},
	{
		ID:           "kCc8FmEb1nY",
		Title:        "Let's build GPT: from scratch, in code, spelled out",
		Channel:      "Andrej Karpathy",
		Duration:     7364,
		ThumbnailURL: "https://i.ytimg.com/vi/kCc8FmEb1nY/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=kCc8FmEb1nY",
		Description:  "Build GPT from scratch with detailed explanations. Learn the architecture behind modern language models through hands-on coding.",
		Tags:         []string{"GPT", "Coding", "Transformers", "Tutorial"},
	},
	{
		ID:           "LCEmiRjPEtQ",
		Title:        "Software Is Changing (Again)",
		Channel:      "Y Combinator",
		Duration:     2371,
		ThumbnailURL: "https://i.ytimg.com/vi/LCEmiRjPEtQ/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=LCEmiRjPEtQ",
		Description:  "Andrej Karpathy's insights on how AI is fundamentally changing software development and engineering practices.",
		Tags:         []string{"AI", "Software Engineering", "Future of Tech"},
	},
	{
		ID:           "9AQOvT8LnMI",
		Title:        "Wisdom-Driven Knowledge Augmented Generation at Scale",
		Channel:      "AI Engineer",
		Duration:     1123,
		ThumbnailURL: "https://i.ytimg.com/vi/9AQOvT8LnMI/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=9AQOvT8LnMI",
		Description:  "Advanced RAG techniques and knowledge graphs for building expert AI systems.",
		Tags:         []string{"RAG", "Knowledge Graphs", "AI Engineering"},
	},
	{
		ID:           "bZQun8Y4L2A",
		Title:        "How Large Language Models Work",
		Channel:      "Google for Developers",
		Duration:     1006,
		ThumbnailURL: "https://i.ytimg.com/vi/bZQun8Y4L2A/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=bZQun8Y4L2A",
		Description:  "Clear explanation of how LLMs function, from tokenization to attention mechanisms.",
		Tags:         []string{"LLM", "Explainer", "Google", "Beginner Friendly"},
	},
	{
		ID:           "aircAruvnKk",
		Title:        "But what is a neural network?",
		Channel:      "3Blue1Brown",
		Duration:     1155,
		ThumbnailURL: "https://i.ytimg.com/vi/aircAruvnKk/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=aircAruvnKk",
		Description:  "Visual intuition for how neural networks work. Perfect for beginners wanting to understand the fundamentals.",
		Tags:         []string{"Neural Networks", "Visual Learning", "Fundamentals"},
	},
	{
		ID:           "VMj-3S1tku0",
		Title:        "Attention in transformers, visually explained",
		Channel:      "3Blue1Brown",
		Duration:     1728,
		ThumbnailURL: "https://i.ytimg.com/vi/VMj-3S1tku0/maxresdefault.jpg",
		VideoURL:     "https://www.youtube.com/watch?v=VMj-3S1tku0",
		Description:  "Beautiful visual explanation of the attention mechanism that powers modern AI. Highly acclaimed tutorial.",
		Tags:         []string{"Transformers", "Attention", "Visual Learning"},
	},
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: presetVideos})
}
