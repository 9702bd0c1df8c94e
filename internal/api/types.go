package api

// Wire types for the backend's REST surface. Everything rides in a uniform
// {success, data, error} envelope; see client.go.

type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Path          string `json:"path"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	FileCount     *int   `json:"file_count"`
	HasGit        *bool  `json:"has_git"`
	GitBranch     string `json:"git_branch"`
	GitHubRepoURL string `json:"github_repo_url"`
	IsPinned      bool   `json:"is_pinned"`
	IsSystem      bool   `json:"is_system"`
}

type ProjectList struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}

type ProjectCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ProjectUpdate struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type Session struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	LastMessage  string `json:"last_message"`
	MessageCount int    `json:"message_count"`
	IsActive     bool   `json:"is_active"`
}

type SessionList struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

type SessionCreate struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name,omitempty"`
}

type SessionUpdate struct {
	Name string `json:"name,omitempty"`
}

// StoredMessage is one persisted chat message as the server returns it when a
// session's history is fetched.
type StoredMessage struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Thinking  string `json:"thinking"`
	CreatedAt string `json:"created_at"`
}

type MessageList struct {
	Messages []StoredMessage `json:"messages"`
	Total    int             `json:"total"`
}

type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
