package memory

import "time"

// Emotion tags a record with the feeling attached to the experience.
type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionSurprised Emotion = "surprised"
	EmotionMoved     Emotion = "moved"
	EmotionExcited   Emotion = "excited"
	EmotionNostalgic Emotion = "nostalgic"
	EmotionCurious   Emotion = "curious"
	EmotionNeutral   Emotion = "neutral"
)

var emotionBoost = map[Emotion]float64{
	EmotionExcited:   0.4,
	EmotionSurprised: 0.35,
	EmotionMoved:     0.3,
	EmotionSad:       0.25,
	EmotionHappy:     0.2,
	EmotionNostalgic: 0.15,
	EmotionCurious:   0.1,
	EmotionNeutral:   0.0,
}

// Valid reports whether the emotion is one of the enumerated tags.
func (e Emotion) Valid() bool {
	_, ok := emotionBoost[e]
	return ok
}

// Boost returns the salience boost used by recall scoring.
// Unknown emotions boost nothing.
func (e Emotion) Boost() float64 {
	return emotionBoost[e]
}

// Category classifies what kind of experience a record captures.
type Category string

const (
	CategoryDaily         Category = "daily"
	CategoryPhilosophical Category = "philosophical"
	CategoryTechnical     Category = "technical"
	CategoryMemory        Category = "memory"
	CategoryObservation   Category = "observation"
	CategoryFeeling       Category = "feeling"
	CategoryConversation  Category = "conversation"
)

var validCategories = map[Category]bool{
	CategoryDaily:         true,
	CategoryPhilosophical: true,
	CategoryTechnical:     true,
	CategoryMemory:        true,
	CategoryObservation:   true,
	CategoryFeeling:       true,
	CategoryConversation:  true,
}

// Valid reports whether the category is one of the enumerated tags.
func (c Category) Valid() bool {
	return validCategories[c]
}

// Importance bounds. Records outside this range are rejected at creation.
const (
	MinImportance = 1
	MaxImportance = 5
)

// CameraPose records the pan/tilt angles the camera held when the
// experience was captured.
type CameraPose struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
}

// Media references captured image/audio artifacts attached to a record.
type Media struct {
	ImagePath  string `json:"image_path,omitempty"`
	AudioPath  string `json:"audio_path,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// Record is a single stored unit of experience.
type Record struct {
	ID              string      `json:"id"`
	Content         string      `json:"content"`
	Embedding       []float32   `json:"-"`
	Emotion         Emotion     `json:"emotion"`
	Category        Category    `json:"category"`
	Importance      int         `json:"importance"`
	Tags            []string    `json:"tags,omitempty"`
	EpisodeID       string      `json:"episode_id,omitempty"`
	Media           *Media      `json:"media,omitempty"`
	CameraPose      *CameraPose `json:"camera_pose,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	LastAccessed    time.Time   `json:"last_accessed,omitzero"`
	AccessCount     int         `json:"access_count"`
	ActivationCount int         `json:"activation_count"`
	LastActivated   time.Time   `json:"last_activated,omitzero"`
	NoveltyScore    float64     `json:"novelty_score"`
	PredictionError float64     `json:"prediction_error"`
}

// Draft holds the caller-supplied fields for a new record. The store
// assigns the id and timestamps.
type Draft struct {
	Content    string
	Embedding  []float32
	Emotion    Emotion
	Category   Category
	Importance int
	Tags       []string
	Media      *Media
	CameraPose *CameraPose
}

// Link is a directed, typed edge between two records.
type Link struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Type      string    `json:"type"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChainEntry is one hop of a causal-chain traversal. Depth 0 is the
// record the traversal started from; its LinkType is empty.
type ChainEntry struct {
	Record   *Record `json:"record"`
	LinkType string  `json:"link_type,omitempty"`
	Depth    int     `json:"depth"`
}

// Episode groups records into a named, ordered collection.
type Episode struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MemberIDs    []string  `json:"member_ids"`
	Participants []string  `json:"participants,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Emotion      Emotion   `json:"emotion"`
	Importance   int       `json:"importance"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time,omitzero"`
}

// Neighbor is one association-graph neighbor with its edge strength.
type Neighbor struct {
	ID       string  `json:"id"`
	Strength float64 `json:"strength"`
}

// CoActivation is one recorded co-retrieval of a pair of records.
// Events are append-only; the consolidation engine replays them.
type CoActivation struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessStat is the per-record usage sample the working-set cache
// refreshes from.
type AccessStat struct {
	RecordID        string
	AccessCount     int
	ActivationCount int
	LastAccessed    time.Time
	LastActivated   time.Time
}

// Stats summarizes the stored records.
type Stats struct {
	TotalRecords  int              `json:"total_records"`
	TotalEpisodes int              `json:"total_episodes"`
	ByCategory    map[Category]int `json:"by_category"`
	ByEmotion     map[Emotion]int  `json:"by_emotion"`
	Oldest        time.Time        `json:"oldest,omitzero"`
	Newest        time.Time        `json:"newest,omitzero"`
}

// Filter narrows a candidate set before ranking. Zero values match
// everything.
type Filter struct {
	Emotion  Emotion
	Category Category
	From     time.Time
	To       time.Time
}

// Match reports whether the record passes the filter.
func (f Filter) Match(r *Record) bool {
	if f.Emotion != "" && r.Emotion != f.Emotion {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}
