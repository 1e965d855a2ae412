package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"microblog/internal/auth"
	"microblog/internal/domain"
	"microblog/internal/mail"
	"microblog/internal/service"
	"microblog/internal/storage"
)

// Options configures a Handler.
type Options struct {
	Users    service.UserService
	Social   service.SocialService
	Timeline service.TimelineService
	Tokens   *auth.Tokens
	Mailer   mail.Dispatcher
	// Storage receives uploads; nil means uploads are only logged.
	Storage storage.Service
	Logger  *logrus.Logger

	PostsPerPage int
	SessionTTL   time.Duration
	RememberTTL  time.Duration
	MailSender   string
	// BaseURL, when set, is the origin of links sent by email instead of the request Host.
	BaseURL   string
	Bucket    string
	KeyPrefix string
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	social   service.SocialService
	timeline service.TimelineService
	tokens   *auth.Tokens
	mailer   mail.Dispatcher
	storage  storage.Service
	logger   *logrus.Logger

	perPage     int
	sessionTTL  time.Duration
	rememberTTL time.Duration
	mailSender  string
	baseURL     string
	bucket      string
	keyPrefix   string
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.PostsPerPage <= 0 {
		opts.PostsPerPage = 3
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.RememberTTL <= 0 {
		opts.RememberTTL = 30 * 24 * time.Hour
	}
	return &Handler{
		users:       opts.Users,
		social:      opts.Social,
		timeline:    opts.Timeline,
		tokens:      opts.Tokens,
		mailer:      opts.Mailer,
		storage:     opts.Storage,
		logger:      opts.Logger,
		perPage:     opts.PostsPerPage,
		sessionTTL:  opts.SessionTTL,
		rememberTTL: opts.RememberTTL,
		mailSender:  opts.MailSender,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		bucket:      opts.Bucket,
		keyPrefix:   opts.KeyPrefix,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.HTMLRender = newPageRenderer()
	router.Use(requestLogger(h.logger))
	router.Use(gin.CustomRecovery(h.recover))
	router.Use(h.loadUser())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	anon := router.Group("/", h.anonymousOnly())
	{
		anon.GET("/login", h.loginPage)
		anon.POST("/login", h.login)
		anon.GET("/register", h.registerPage)
		anon.POST("/register", h.register)
		anon.GET("/reset_password_request", h.resetRequestPage)
		anon.POST("/reset_password_request", h.resetRequest)
		anon.GET("/reset_password/:token", h.resetPasswordPage)
		anon.POST("/reset_password/:token", h.resetPassword)
	}
	router.GET("/logout", h.logout)

	authed := router.Group("/", h.requireLogin())
	{
		authed.GET("/", h.indexPage)
		authed.POST("/", h.createPost)
		authed.GET("/index", h.indexPage)
		authed.POST("/index", h.createPost)
		authed.GET("/explore", h.explore)
		authed.GET("/user/:username", h.profile)
		authed.GET("/edit_profile", h.editProfilePage)
		authed.POST("/edit_profile", h.editProfile)
		authed.POST("/follow/:username", h.follow)
		authed.POST("/unfollow/:username", h.unfollow)
		authed.GET("/upload", h.uploadPage)
		authed.POST("/upload", h.upload)
	}

	router.NoRoute(h.notFound)
}

func (h *Handler) notFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "404.html", gin.H{"Title": "Not Found"})
}

// internalError logs err and renders the 500 page. Error level entries reach the admins by mail.
func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Errorf("request failed: %v", err)
	_ = c.Error(err)
	h.render(c, http.StatusInternalServerError, "500.html", gin.H{"Title": "Error"})
	c.Abort()
}

func (h *Handler) recover(c *gin.Context, recovered any) {
	h.internalError(c, fmt.Errorf("panic: %v", recovered))
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// pageParam reads the 1-indexed page query parameter; anything unusable is page 1.
func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func pagerURLs[T any](base string, page domain.Page[T]) (next, prev string) {
	if page.HasNext() {
		next = fmt.Sprintf("%s?page=%d", base, page.NextNum())
	}
	if page.HasPrev() {
		prev = fmt.Sprintf("%s?page=%d", base, page.PrevNum())
	}
	return next, prev
}

func isNotFound(err error) bool {
	return errors.Is(err, service.ErrUserNotFound)
}
