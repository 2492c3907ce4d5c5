package server

// Wire DTOs for the DataAccessService endpoints. 64-bit values are
// encoded as decimal strings, matching the platform's JSON conventions.

type readLocationRequest struct {
	Path     string `json:"path"`
	Snapshot int64  `json:"snapshot,string,omitempty"`
}

type readLocationResponse struct {
	AccessAllowed  bool   `json:"accessAllowed"`
	ParentURI      string `json:"parentUri,omitempty"`
	Version        int64  `json:"version,string,omitempty"`
	AccessToken    string `json:"accessToken,omitempty"`
	ExpirationTime int64  `json:"expirationTime,string,omitempty"`
}

type writeLocationRequest struct {
	MetadataJSON string `json:"metadataJson"`
}

type writeLocationResponse struct {
	AccessAllowed bool   `json:"accessAllowed"`
	ParentURI     string `json:"parentUri,omitempty"`

	ValidMetadataJSON string `json:"validMetadataJson,omitempty"`
	MetadataSignature []byte `json:"metadataSignature,omitempty"`

	AllValidMetadataJSON string `json:"allValidMetadataJson,omitempty"`
	AllMetadataSignature []byte `json:"allMetadataSignature,omitempty"`

	AccessToken    string `json:"accessToken,omitempty"`
	ExpirationTime int64  `json:"expirationTime,string,omitempty"`
}

type writeAccessTokenRequest struct {
	MetadataJSON      string `json:"metadataJson"`
	MetadataSignature []byte `json:"metadataSignature"`
}

type writeAccessTokenResponse struct {
	AccessToken    string `json:"accessToken"`
	ExpirationTime int64  `json:"expirationTime,string"`
	ParentURI      string `json:"parentUri,omitempty"`
}

type deleteLocationRequest struct {
	Path     string `json:"path"`
	Snapshot int64  `json:"snapshot,string,omitempty"`
}

type deleteLocationResponse struct {
	AccessAllowed  bool   `json:"accessAllowed"`
	ParentURI      string `json:"parentUri,omitempty"`
	Version        int64  `json:"version,string,omitempty"`
	AccessToken    string `json:"accessToken,omitempty"`
	ExpirationTime int64  `json:"expirationTime,string,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
