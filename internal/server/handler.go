package server

import (
	"net/http"

	"yaca/internal/auth"
	"yaca/internal/service"

	"github.com/gin-gonic/gin"
)

// OnlineCounter reports how many subscribers are connected.
type OnlineCounter interface {
	Online() int
}

// Handler groups the HTTP handlers and their service dependencies.
type Handler struct {
	accounts *service.AccountService
	messages *service.MessageService
	online   OnlineCounter
}

func NewHandler(accounts *service.AccountService, messages *service.MessageService, online OnlineCounter) *Handler {
	return &Handler{accounts: accounts, messages: messages, online: online}
}

type registerRequest struct {
	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"credentials"`
	Extra string `json:"extra"`
}

// Register handles POST /auth/users.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badBody())
		return
	}
	acc, err := h.accounts.Register(c.Request.Context(), req.Credentials.Username, req.Credentials.Password, req.Extra)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusCreated, success{
		Name:           "UserRegistered",
		Message:        "User successfully registered",
		AuthorizedUser: acc.Username,
		Payload:        acc,
	})
}

// Login handles POST /auth/tokens/:username.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badBody())
		return
	}
	username := c.Param("username")
	res, err := h.accounts.Login(c.Request.Context(), username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, success{
		Name:           "UserAuthenticated",
		Message:        "User successfully authenticated",
		AuthorizedUser: username,
		Payload:        res,
	})
}

// PostMessage handles POST /chat/messages.
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badBody())
		return
	}
	principal := auth.Principal(c)
	msg, err := h.messages.Post(c.Request.Context(), req.Author, req.Text, principal)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusCreated, success{
		Name:           "ChatMessageCreated",
		Message:        "User successfully posted a message",
		AuthorizedUser: principal,
		Payload:        msg,
	})
}

// ListMessages handles GET /chat/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	body := success{
		Name:           "ChatMessagesFound",
		Message:        "Successfully pulled all chat messages",
		AuthorizedUser: auth.Principal(c),
		Payload:        msgs,
	}
	if len(msgs) == 0 {
		body.Name, body.Message = "NoChatMessagesYet", "No chat messages found"
	}
	writeOK(c, http.StatusOK, body)
}

// ListUsernames handles GET /chat/usernames.
func (h *Handler) ListUsernames(c *gin.Context) {
	names, err := h.accounts.ListUsernames(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, success{
		Name:           "UsersFound",
		Message:        "Successfully fetched all usernames",
		AuthorizedUser: auth.Principal(c),
		Payload:        names,
	})
}

// GetUser handles GET /chat/users/:username.
func (h *Handler) GetUser(c *gin.Context) {
	acc, err := h.accounts.GetAccount(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, success{
		Name:           "UserFound",
		Message:        "Successfully found user",
		AuthorizedUser: auth.Principal(c),
		Payload:        acc,
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "online": h.online.Online()})
}
