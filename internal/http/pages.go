package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"microblog/internal/domain"
	"microblog/internal/form"
	"microblog/internal/service"
	"microblog/internal/storage"
)

func (h *Handler) pageRequest(c *gin.Context) domain.PageRequest {
	return domain.NewPageRequest(pageParam(c), h.perPage, h.perPage)
}

func (h *Handler) indexPage(c *gin.Context) {
	h.renderIndex(c, form.PostForm{}, form.Errors{})
}

func (h *Handler) renderIndex(c *gin.Context, f form.PostForm, errs form.Errors) {
	user := currentUser(c)
	posts, err := h.timeline.FollowedPosts(c.Request.Context(), user.ID, h.pageRequest(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	next, prev := pagerURLs("/index", posts)
	h.render(c, http.StatusOK, "index.html", gin.H{
		"Title":    "Home",
		"ShowForm": true,
		"Form":     f,
		"Errors":   errs,
		"Posts":    posts.Items,
		"NextURL":  next,
		"PrevURL":  prev,
	})
}

func (h *Handler) createPost(c *gin.Context) {
	var f form.PostForm
	if err := c.ShouldBind(&f); err != nil {
		f = form.PostForm{}
	}
	if errs := f.Validate(); !errs.Valid() {
		h.renderIndex(c, f, errs)
		return
	}

	user := currentUser(c)
	post, err := h.timeline.CreatePost(c.Request.Context(), user.ID, f.Post)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPost) {
			errs := form.Errors{}
			errs.Add("post", err.Error())
			h.renderIndex(c, f, errs)
			return
		}
		h.internalError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{"user_id": user.ID, "post_id": post.ID}).Debug("post created")

	flash(c, "Your post has been saved")
	redirect(c, "/index")
}

func (h *Handler) explore(c *gin.Context) {
	posts, err := h.timeline.Explore(c.Request.Context(), h.pageRequest(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	next, prev := pagerURLs("/explore", posts)
	h.render(c, http.StatusOK, "index.html", gin.H{
		"Title":   "Explore",
		"Posts":   posts.Items,
		"NextURL": next,
		"PrevURL": prev,
	})
}

func (h *Handler) profile(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.Param("username")

	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			h.notFound(c)
			return
		}
		h.internalError(c, err)
		return
	}

	posts, err := h.timeline.UserPosts(ctx, user.ID, h.pageRequest(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	counts, err := h.social.Counts(ctx, user.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	me := currentUser(c)
	following := false
	if me.ID != user.ID {
		if following, err = h.social.IsFollowing(ctx, me.ID, user.ID); err != nil {
			h.internalError(c, err)
			return
		}
	}

	next, prev := pagerURLs("/user/"+url.PathEscape(user.Username), posts)
	h.render(c, http.StatusOK, "user.html", gin.H{
		"Title":       user.Username,
		"User":        user,
		"Posts":       posts.Items,
		"Counts":      counts,
		"IsFollowing": following,
		"NextURL":     next,
		"PrevURL":     prev,
	})
}

func (h *Handler) editProfilePage(c *gin.Context) {
	user := currentUser(c)
	h.render(c, http.StatusOK, "edit_profile.html", gin.H{
		"Title": "Edit Profile",
		"Form":  form.EditProfileForm{Username: user.Username, AboutMe: user.AboutMe},
	})
}

func (h *Handler) editProfile(c *gin.Context) {
	var f form.EditProfileForm
	if err := c.ShouldBind(&f); err != nil {
		f = form.EditProfileForm{}
	}
	ctx := c.Request.Context()
	user := currentUser(c)

	errs, err := f.Validate(ctx, h.users, user.Username)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if errs.Valid() {
		_, err := h.users.UpdateProfile(ctx, user.ID, f.Username, f.AboutMe)
		switch {
		case err == nil:
			flash(c, "Your changes have been saved.")
			redirect(c, "/edit_profile")
			return
		case errors.Is(err, service.ErrUsernameTaken):
			errs.Add("username", "Username is already taken")
		default:
			h.internalError(c, err)
			return
		}
	}

	h.render(c, http.StatusOK, "edit_profile.html", gin.H{
		"Title":  "Edit Profile",
		"Form":   f,
		"Errors": errs,
	})
}

func (h *Handler) follow(c *gin.Context) {
	h.changeFollow(c, true)
}

func (h *Handler) unfollow(c *gin.Context) {
	h.changeFollow(c, false)
}

func (h *Handler) changeFollow(c *gin.Context, follow bool) {
	ctx := c.Request.Context()
	username := c.Param("username")
	me := currentUser(c)

	target, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			flash(c, fmt.Sprintf("User %s not found.", username))
			redirect(c, "/index")
			return
		}
		h.internalError(c, err)
		return
	}

	profileURL := "/user/" + url.PathEscape(target.Username)
	if target.ID == me.ID {
		if follow {
			flash(c, "You cannot follow yourself!")
		} else {
			flash(c, "You cannot unfollow yourself!")
		}
		redirect(c, profileURL)
		return
	}

	if follow {
		err = h.social.Follow(ctx, me.ID, target.ID)
	} else {
		err = h.social.Unfollow(ctx, me.ID, target.ID)
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if follow {
		flash(c, fmt.Sprintf("You are following %s!", target.Username))
	} else {
		flash(c, fmt.Sprintf("You are not following %s.", target.Username))
	}
	redirect(c, profileURL)
}

func (h *Handler) uploadPage(c *gin.Context) {
	h.render(c, http.StatusOK, "upload.html", gin.H{"Title": "Upload Images"})
}

func (h *Handler) upload(c *gin.Context) {
	user := currentUser(c)
	logger := h.logger.WithField("user_id", user.ID)

	var files []*multipart.FileHeader
	if mf, err := c.MultipartForm(); err == nil {
		files = mf.File["file"]
	} else if !errors.Is(err, http.ErrNotMultipart) {
		logger.Warnf("parse upload: %v", err)
	}

	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		name := storage.SecureFilename(fh.Filename)
		if name == "" {
			logger.WithField("filename", fh.Filename).Warn("skipping upload with unusable name")
			continue
		}
		if h.storage == nil || h.bucket == "" {
			logger.WithField("filename", name).Info("upload received")
			continue
		}
		if err := h.storeUpload(c, user.ID, name, fh); err != nil {
			logger.WithField("filename", name).Errorf("store upload: %v", err)
		}
	}

	flash(c, "Your images have been submitted for processing")
	redirect(c, "/index")
}

func (h *Handler) storeUpload(c *gin.Context, userID int64, name string, fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := storage.ObjectKey(h.keyPrefix, userID, name)
	location, err := h.storage.Upload(c.Request.Context(), key, f, storage.UploadOptions{
		Bucket:      h.bucket,
		ContentType: fh.Header.Get("Content-Type"),
	})
	if err != nil {
		return err
	}
	h.logger.WithFields(logrus.Fields{"user_id": userID, "location": location}).Info("upload stored")
	return nil
}
