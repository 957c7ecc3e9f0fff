package devapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/devapi/middleware"
	"github.com/example/ec-storefront/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// productPage is the paged listing shape
type productPage struct {
	Content       []model.Product `json:"content"`
	TotalPages    int             `json:"totalPages"`
	TotalElements int             `json:"totalElements"`
	Page          int             `json:"page"`
}

// parseFilters reads listing query parameters; malformed values are ignored
func parseFilters(r *http.Request) model.ProductFilters {
	q := r.URL.Query()
	f := model.ProductFilters{Keyword: q.Get("keyword"), SortBy: q.Get("sortBy"), Limit: defaultPageSize}
	if id, err := strconv.ParseInt(q.Get("categoryId"), 10, 64); err == nil {
		f.CategoryID = &id
	}
	if id, err := strconv.ParseInt(q.Get("brandId"), 10, 64); err == nil {
		f.BrandID = &id
	}
	if d, err := decimal.NewFromString(q.Get("minPrice")); err == nil {
		f.MinPrice = &d
	}
	if d, err := decimal.NewFromString(q.Get("maxPrice")); err == nil {
		f.MaxPrice = &d
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page >= 0 {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		f.Limit = min(limit, maxPageSize)
	}
	return f
}

func (s *Server) respondProducts(w http.ResponseWriter, f model.ProductFilters) {
	items, total := s.data.Products(f)
	pages := (total + f.Limit - 1) / f.Limit
	if pages == 0 {
		pages = 1
	}
	respondJSON(w, http.StatusOK, productPage{Content: items, TotalPages: pages, TotalElements: total, Page: f.Page})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.respondProducts(w, parseFilters(r))
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	f := parseFilters(r)
	if f.Keyword == "" {
		middleware.RespondError(w, http.StatusBadRequest, "Search keyword is required")
		return
	}
	s.respondProducts(w, f)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.data.Product(id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.Categories())
}

func (s *Server) listBrands(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.Brands())
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reviews, err := s.data.Reviews(id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

// postReview attributes the review to X-USER-ID, which must name the caller
func (s *Server) postReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())
	if header := r.Header.Get("X-USER-ID"); header != "" && header != strconv.FormatInt(userID, 10) {
		middleware.RespondError(w, http.StatusForbidden, "X-USER-ID does not match the logged-in user")
		return
	}
	var req apiclient.ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	review, err := s.data.AddReview(model.Review{
		ProductID: id,
		UserID:    userID,
		Rating:    req.Rating,
		Title:     req.Title,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

// ==== Admin ====

func productFromInput(in apiclient.ProductInput) model.Product {
	return model.Product{
		SKU:              in.SKU,
		Name:             in.Name,
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
		Price:            in.Price,
		Available:        in.Available,
		CategoryID:       in.CategoryID,
		BrandID:          in.BrandID,
		Stock:            in.AvailableQuantity,
	}
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var in apiclient.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := s.data.CreateProduct(productFromInput(in))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in apiclient.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := s.data.UpdateProduct(id, productFromInput(in))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.data.DeleteProduct(id); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		AvailableQuantity int `json:"availableQuantity"`
	}
	if !decode(w, r, &in) {
		return
	}
	p, err := s.data.SetStock(id, in.AvailableQuantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) addImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in apiclient.ImageInput
	if !decode(w, r, &in) {
		return
	}
	img, err := s.data.AddImage(id, model.ProductImage{ImageURL: in.ImageURL, AltText: in.AltText})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, img)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageID")
	if !ok {
		return
	}
	if err := s.data.DeleteImage(id, imageID); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var in model.Category
	if !decode(w, r, &in) {
		return
	}
	c, err := s.data.CreateCategory(in.Name)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) createBrand(w http.ResponseWriter, r *http.Request) {
	var in model.Brand
	if !decode(w, r, &in) {
		return
	}
	b, err := s.data.CreateBrand(in.Name)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}
