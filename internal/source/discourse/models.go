package discourse

// LatestResponse is the shape of /latest.json.
type LatestResponse struct {
	Users     []User    `json:"users"`
	TopicList TopicList `json:"topic_list"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type TopicList struct {
	Topics []APITopic `json:"topics"`
}

type APITopic struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Slug         string   `json:"slug"`
	PostsCount   int      `json:"posts_count"`
	CreatedAt    string   `json:"created_at"`
	LastPostedAt string   `json:"last_posted_at"`
	BumpedAt     string   `json:"bumped_at"`
	Tags         []string `json:"tags"`
	Posters      []Poster `json:"posters"`
}

type Poster struct {
	UserID      int64  `json:"user_id"`
	Description string `json:"description"`
}

// TopicResponse is the shape of /t/<slug>/<id>.json.
type TopicResponse struct {
	PostStream PostStream `json:"post_stream"`
}

type PostStream struct {
	Posts []APIPost `json:"posts"`
}

type APIPost struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	PostNumber int    `json:"post_number"`
	CreatedAt  string `json:"created_at"`
	Cooked     string `json:"cooked"`
}
