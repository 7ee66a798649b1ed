package model

// StorageListing describes the artifact store's contents: top-level folders
// when no directory filter is given, otherwise a folder's objects.
type StorageListing struct {
	Directories []string `json:"directories,omitempty"`
	Directory   string   `json:"directory,omitempty"`
	Objects     []string `json:"objects,omitempty"`
}
