package vista

// MinGalleryPhotos is the minimum usable gallery size; below it the property
// is flagged for hydration.
const MinGalleryPhotos = 3

type PhotoSource string

const (
	// PhotoSourceGallery is a real gallery from the detail endpoint.
	PhotoSourceGallery PhotoSource = "gallery"
	// PhotoSourcePhotosEndpoint is a gallery from the dedicated photos endpoint.
	PhotoSourcePhotosEndpoint PhotoSource = "photos-endpoint"
	// PhotoSourceHighlight is a degraded single photo synthesized from the
	// highlight-photo field.
	PhotoSourceHighlight PhotoSource = "highlight"
	// PhotoSourceFallbackEmpty marks an empty gallery; never cached.
	PhotoSourceFallbackEmpty PhotoSource = "fallback-empty"
)

type Photo struct {
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Order       int    `json:"order"`
	IsHighlight bool   `json:"isHighlight"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type Address struct {
	Street       string  `json:"street,omitempty"`
	Number       string  `json:"number,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

type Pricing struct {
	Sale     float64 `json:"sale,omitempty"`
	Rent     float64 `json:"rent,omitempty"`
	CondoFee float64 `json:"condoFee,omitempty"`
	Tax      float64 `json:"tax,omitempty"`
}

type Specs struct {
	Bedrooms    int     `json:"bedrooms"`
	Suites      int     `json:"suites"`
	Parking     int     `json:"parking"`
	TotalArea   float64 `json:"totalArea,omitempty"`
	PrivateArea float64 `json:"privateArea,omitempty"`
}

// ProviderData carries the untouched upstream record for downstream
// enrichment.
type ProviderData struct {
	Raw RawRecord `json:"raw"`
}

// Property is the canonical catalog record.
type Property struct {
	ID                 string  `json:"id"`
	Code               string  `json:"code"`
	Type               string  `json:"type,omitempty"`
	Purpose            string  `json:"purpose,omitempty"`
	Status             string  `json:"status,omitempty"`
	ConstructionStatus string  `json:"constructionStatus,omitempty"`
	Address            Address `json:"address"`
	Pricing            Pricing `json:"pricing"`
	Specs              Specs   `json:"specs"`

	Photos         []Photo     `json:"photos"`
	PhotosSource   PhotoSource `json:"photosSource,omitempty"`
	GalleryMissing bool        `json:"galleryMissing"`

	Characteristics  []string `json:"characteristics,omitempty"`
	BuildingFeatures []string `json:"buildingFeatures,omitempty"`
	LocationFeatures []string `json:"locationFeatures,omitempty"`

	BuildingID   string `json:"buildingId,omitempty"`
	BuildingName string `json:"buildingName,omitempty"`

	// SeaDistance is meters to the waterfront; nil means unknown, and an
	// unknown distance never matches a sea-distance bucket.
	SeaDistance *float64 `json:"seaDistance,omitempty"`

	Exclusive      bool `json:"exclusive,omitempty"`
	Launch         bool `json:"launch,omitempty"`
	SuperHighlight bool `json:"superHighlight,omitempty"`

	UpdatedAt string `json:"updatedAt,omitempty"`

	ProviderData ProviderData `json:"providerData"`
}

// usablePhotoCount counts photos carrying a non-empty URL.
func (p *Property) usablePhotoCount() int {
	n := 0
	for _, ph := range p.Photos {
		if ph.URL != "" {
			n++
		}
	}
	return n
}

// RecomputeGalleryMissing enforces the invariant: missing iff fewer than
// MinGalleryPhotos photos have a URL.
func (p *Property) RecomputeGalleryMissing() {
	p.GalleryMissing = p.usablePhotoCount() < MinGalleryPhotos
}

// Building is a development (empreendimento) record.
type Building struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Status       string       `json:"status,omitempty"`
	Address      Address      `json:"address"`
	Features     []string     `json:"features,omitempty"`
	DeliveryDate string       `json:"deliveryDate,omitempty"`
	ProviderData ProviderData `json:"providerData"`
}
