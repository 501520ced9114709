package handler

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"crm-service/internal/model"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"
	"crm-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its words with dashes
func Slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// KBArticleRequest is used for both create and update
type KBArticleRequest struct {
	Title     *string   `json:"title"`
	Slug      *string   `json:"slug"`
	Category  *string   `json:"category"`
	Content   *string   `json:"content"`
	Tags      *[]string `json:"tags"`
	Published *bool     `json:"published"`
}

func (r *KBArticleRequest) apply(a *model.KBArticle) error {
	setString(&a.Title, r.Title)
	if r.Slug != nil {
		a.Slug = Slugify(*r.Slug)
	}
	setString(&a.Category, r.Category)
	if r.Content != nil {
		a.Content = *r.Content
	}
	if r.Tags != nil {
		a.Tags = datatypes.JSONSlice[string](*r.Tags)
	}
	if r.Published != nil {
		a.Published = *r.Published
	}

	if err := required("title", a.Title); err != nil {
		return err
	}
	if a.Slug == "" {
		a.Slug = Slugify(a.Title)
	}
	if a.Slug == "" {
		return service.Invalid("slug", "cannot be derived from the title")
	}
	return nil
}

func slugTaken(slug, exceptID string) (bool, error) {
	var count int64
	q := database.GetDB().Model(&model.KBArticle{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func listArticles(c echo.Context, publishedOnly bool) error {
	log := logger.FromContext(c)
	page, limit, offset := parsePagination(c)

	query := database.GetDB().Model(&model.KBArticle{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	} else if v, err := strconv.ParseBool(c.QueryParam("published")); err == nil {
		query = query.Where("published = ?", v)
	}
	// Filter by category if specified
	if category := c.QueryParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	// Search by free text if specified
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}

	// Count matches before paging
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return respondError(c, err, "articles", "retrieve")
	}

	// Execute the query
	var articles []model.KBArticle
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&articles).Error; err != nil {
		return respondError(c, err, "articles", "retrieve")
	}

	log.Info("Articles retrieved successfully",
		zap.Int("count", len(articles)),
		zap.Bool("public", publishedOnly))
	return c.JSON(http.StatusOK, echo.Map{
		"articles":   articles,
		"pagination": paginationMeta(page, limit, total),
	})
}

// ListKBArticles lists all articles for staff
func ListKBArticles(c echo.Context) error {
	prometheus.RecordOperation("kb_article", "list")
	return listArticles(c, false)
}

// GetKBArticle returns one article by id
func GetKBArticle(c echo.Context) error {
	prometheus.RecordOperation("kb_article", "get")

	var a model.KBArticle
	if err := database.GetDB().First(&a, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "article", "retrieve")
	}
	return c.JSON(http.StatusOK, a)
}

// CreateKBArticle creates an article; the slug is derived from the title when omitted
func CreateKBArticle(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("kb_article", "create")

	var req KBArticleRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	var a model.KBArticle
	if err := req.apply(&a); err != nil {
		return respondError(c, err, "article", "create")
	}

	// Check if the slug is already used
	taken, err := slugTaken(a.Slug, "")
	if err != nil {
		return respondError(c, err, "article", "create")
	}
	if taken {
		return badRequest(c, "An article with this slug already exists")
	}

	// Create the article
	if err := database.GetDB().Create(&a).Error; err != nil {
		return respondError(c, err, "article", "create")
	}

	log.Info("Article created", zap.String("article_id", a.ID), zap.String("slug", a.Slug))
	return c.JSON(http.StatusCreated, a)
}

// UpdateKBArticle applies the provided fields to an article
func UpdateKBArticle(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("kb_article", "update")

	var req KBArticleRequest
	if err := c.Bind(&req); err != nil {
		return bindError(c, err)
	}

	db := database.GetDB()
	// Find existing article
	var a model.KBArticle
	if err := db.First(&a, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, err, "article", "update")
	}

	// Update fields
	oldSlug := a.Slug
	if err := req.apply(&a); err != nil {
		return respondError(c, err, "article", "update")
	}
	if a.Slug != oldSlug {
		// Check if the slug is already used
		taken, err := slugTaken(a.Slug, a.ID)
		if err != nil {
			return respondError(c, err, "article", "update")
		}
		if taken {
			return badRequest(c, "An article with this slug already exists")
		}
	}

	// Save changes
	if err := db.Save(&a).Error; err != nil {
		return respondError(c, err, "article", "update")
	}

	log.Info("Article updated", zap.String("article_id", a.ID))
	return c.JSON(http.StatusOK, a)
}

// DeleteKBArticle soft-deletes an article
func DeleteKBArticle(c echo.Context) error {
	prometheus.RecordOperation("kb_article", "delete")

	res := database.GetDB().Where("id = ?", c.Param("id")).Delete(&model.KBArticle{})
	if res.Error != nil {
		return respondError(c, res.Error, "article", "delete")
	}
	if res.RowsAffected == 0 {
		return respondError(c, service.ErrNotFound, "article", "delete")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Article deleted successfully"})
}

// PublicListKBArticles lists published articles without authentication
func PublicListKBArticles(c echo.Context) error {
	prometheus.RecordOperation("kb_article", "public_list")
	return listArticles(c, true)
}

// PublicGetKBArticle returns a published article by slug and counts the view
func PublicGetKBArticle(c echo.Context) error {
	prometheus.RecordOperation("kb_article", "public_get")

	db := database.GetDB()
	var a model.KBArticle
	if err := db.First(&a, "slug = ? AND published = ?", c.Param("slug"), true).Error; err != nil {
		return respondError(c, err, "article", "retrieve")
	}

	if err := db.Model(&a).UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		logger.FromContext(c).Warn("Failed to count article view",
			zap.String("article_id", a.ID),
			zap.Error(err))
	} else {
		a.Views++
	}
	return c.JSON(http.StatusOK, a)
}
