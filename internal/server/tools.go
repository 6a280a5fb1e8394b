package server

import "net/http"

// Endpoint documents one route of the server.
type Endpoint struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters,omitempty"`
}

// Parameter groups shared by rendering endpoints.
var (
	sizeParameters      = []string{"height", "width", "length", "zoom", "level"}
	planeParameters     = []string{"channels", "z_slices", "timepoints",
		"c_reduction", "z_reduction", "t_reduction"}
	operationParameters = []string{"min_intensities", "max_intensities", "gammas", "log",
		"colormaps", "filters", "format", "quality"}
)

func join(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// GetEndpointDefinitions returns every endpoint served by the server.
func GetEndpointDefinitions() []Endpoint {
	tile := join(planeParameters, operationParameters)
	annotations := []string{"annotations", "context_factor"}
	return []Endpoint{
		{
			Method:      http.MethodGet,
			Path:        "/health",
			Description: "Server status, uptime and response cache statistics.",
		},
		{
			Method:      http.MethodGet,
			Path:        "/image/{path}/info",
			Description: "Image dimensions, channels, bit depth and pyramid tiers. Slashes in path are escaped as %2F.",
		},
		{
			Method:      http.MethodGet,
			Path:        "/image/{path}/thumb",
			Description: "Whole image at low resolution, always on 8 bits.",
			Parameters:  join(sizeParameters, []string{"allow_upscaling"}, planeParameters, operationParameters),
		},
		{
			Method:      http.MethodGet,
			Path:        "/image/{path}/resized",
			Description: "Whole image at any size, bit depth and colorspace.",
			Parameters:  join(sizeParameters, []string{"allow_upscaling", "bits", "colorspace"}, planeParameters, operationParameters),
		},
		{
			Method: http.MethodGet,
			Path:   "/image/{path}/window",
			Description: "Region of an image, given as region=top,left,width,height or as a tile (ti, or tx and ty) " +
				"of the reference tier.",
			Parameters: join([]string{"region", "ti", "tx", "ty", "reference_tier_index", "tier_index_type", "bits", "colorspace"},
				sizeParameters, planeParameters, operationParameters),
		},
		{
			Method:      http.MethodPost,
			Path:        "/image/{path}/window",
			Description: "Region of an image with annotations cropped, drawn or rendered as a mask, from a JSON body.",
			Parameters: join([]string{"region", "ti", "tx", "ty", "reference_tier_index", "tier_index_type", "bits", "colorspace",
				"annotations", "annotation_style"}, sizeParameters, planeParameters, operationParameters),
		},
		{Method: http.MethodGet, Path: "/image/{path}/tile/level/{level}/ti/{ti}", Description: "Tile by index on a level.", Parameters: tile},
		{Method: http.MethodGet, Path: "/image/{path}/tile/zoom/{zoom}/ti/{ti}", Description: "Tile by index on a zoom.", Parameters: tile},
		{Method: http.MethodGet, Path: "/image/{path}/tile/level/{level}/tx/{tx}/ty/{ty}", Description: "Tile by coordinates on a level.", Parameters: tile},
		{Method: http.MethodGet, Path: "/image/{path}/tile/zoom/{zoom}/tx/{tx}/ty/{ty}", Description: "Tile by coordinates on a zoom.", Parameters: tile},
		{
			Method:      http.MethodPost,
			Path:        "/image/{path}/annotation/mask",
			Description: "Binary mask of annotations over the region surrounding them.",
			Parameters:  join(annotations, sizeParameters, []string{"format"}),
		},
		{
			Method:      http.MethodPost,
			Path:        "/image/{path}/annotation/crop",
			Description: "Region surrounding annotations, transparent outside them.",
			Parameters:  join(annotations, []string{"background_transparency"}, sizeParameters, planeParameters, operationParameters),
		},
		{
			Method:      http.MethodPost,
			Path:        "/image/{path}/annotation/drawing",
			Description: "Region surrounding annotations with their outlines drawn over.",
			Parameters: join(annotations, []string{"try_square", "point_cross", "point_envelope_length"},
				sizeParameters, planeParameters, operationParameters),
		},
		{Method: http.MethodGet, Path: "/colormaps", Description: "Registered colormaps."},
		{Method: http.MethodGet, Path: "/colormaps/{id}", Description: "A colormap, registered or built from any color."},
		{
			Method:      http.MethodGet,
			Path:        "/colormaps/{id}/representation",
			Description: "Image of a colormap ramp.",
			Parameters:  []string{"width", "height", "format"},
		},
		{Method: http.MethodGet, Path: "/filters", Description: "Available filters."},
	}
}

func (s *Server) handleCatalog(r *http.Request) (any, error) {
	endpoints := GetEndpointDefinitions()
	return collection[Endpoint]{Items: endpoints, Size: len(endpoints)}, nil
}
