package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/quickcart/apiserver/internal/services"
	"github.com/quickcart/apiserver/internal/storage"
	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	maxJSONBytes       = 1 << 20
	maxMultipartMemory = 8 << 20
	maxImageBytes      = 5 << 20
	formFieldName      = "name"
	formFieldPrice     = "price"
	formFieldDesc      = "description"
	formFieldCategory  = "category"
	formFieldImage     = "image"
	queryParamCategory = "category"
	productIDParam     = "productID"
	imageCacheControl  = "public, max-age=86400"
)

// ProductHandler provides HTTP handlers for the catalog.
type ProductHandler struct {
	productService *services.ProductService
}

// NewProductHandler constructs a handler with the provided service.
func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// ProductRouter registers catalog routes on the given router. Writes are
// restricted to admins.
func ProductRouter(
	r chi.Router,
	productService *services.ProductService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProductHandler(productService)
	adminOnly := RequireRole(types.RoleAdmin)

	r.Get("/", handler.ListProducts)
	r.With(authMiddleware, adminOnly).Post("/", handler.CreateProduct)
	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", handler.GetProduct)
		r.With(authMiddleware, adminOnly).Delete("/", handler.DeleteProduct)
	})
}

// ImageRouter serves stored product images under /uploads.
func ImageRouter(r chi.Router, productService *services.ProductService) {
	handler := NewProductHandler(productService)
	r.Get("/*", handler.ServeImage)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context(), r.URL.Query().Get(queryParamCategory))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.Get(r.Context(), chi.URLParam(r, productIDParam))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// CreateProduct accepts a multipart form with an optional image, or a JSON body.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, image, err := parseProductRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.Create(r.Context(), input, image)
	if err != nil {
		writeServiceError(w, err, "failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.productService.Delete(r.Context(), chi.URLParam(r, productIDParam))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "product deleted successfully"})
}

func (h *ProductHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	body, err := h.productService.OpenImage(r.Context(), key)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load image")
		return
	}
	defer body.Close()

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", imageCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// ProductRequest is the JSON form of a new product.
type ProductRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

func parseProductRequest(w http.ResponseWriter, r *http.Request) (services.ProductInput, *services.ImageUpload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req ProductRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.ProductInput{}, nil, errors.New("invalid request")
		}
		return services.ProductInput{
			Name:        req.Name,
			Price:       req.Price,
			Description: req.Description,
			Category:    req.Category,
		}, nil, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.ProductInput{}, nil, errors.New("invalid multipart form")
	}

	rawPrice := strings.TrimSpace(r.FormValue(formFieldPrice))
	if rawPrice == "" {
		return services.ProductInput{}, nil, errors.New("price is required")
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return services.ProductInput{}, nil, errors.New("invalid price")
	}

	image, err := parseImageFile(r.MultipartForm)
	if err != nil {
		return services.ProductInput{}, nil, err
	}

	return services.ProductInput{
		Name:        r.FormValue(formFieldName),
		Price:       price,
		Description: r.FormValue(formFieldDesc),
		Category:    r.FormValue(formFieldCategory),
	}, image, nil
}

func parseImageFile(form *multipart.Form) (*services.ImageUpload, error) {
	if form == nil {
		return nil, nil
	}
	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}
	return &services.ImageUpload{Filename: fileHeader.Filename, Data: data}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
