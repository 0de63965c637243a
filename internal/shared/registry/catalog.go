package registry

import "golang.org/x/crypto/bcrypt"

// Collection 名称常量
const (
	ColUsers         = "users"
	ColRoles         = "roles"
	ColPosts         = "posts"
	ColProducts      = "products"
	ColSubcategories = "subcategories"
	ColCategories    = "categories"
)

// Catalog 构建目录后台的全部资源描述符
func Catalog() (*Registry, error) {
	return New(
		&Resource{
			Name:       "users",
			Singular:   "user",
			Collection: ColUsers,
			Fields: []Field{
				{Name: "name", Rule: "required"},
				{Name: "email", Rule: "required,email"},
				{Name: "password", Rule: "omitempty,min=6"},
				{Name: "birthday", Rule: ""},
				{Name: "gender", Rule: ""},
				{Name: "mobile", Rule: ""},
				{Name: "phone", Rule: ""},
			},
			Relations:    []Relation{{Field: "role", Target: "roles"}},
			DefaultSort:  "name",
			SearchFields: []string{"name", "email"},
			Filters:      []Filter{{Param: "role", Path: "role._id"}},
			Protected:    []string{"_id", "status", "email", "password", "login_type", "last_access"},
			Hidden:       []string{"password"},
			FileFields:   []string{"image.filename"},
			Unique:       []string{"email"},
			Defaults:     map[string]any{"login_type": "basic"},
			PrepareCreate: func(doc map[string]any) error {
				pw, _ := doc["password"].(string)
				if pw == "" {
					return nil
				}
				hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				doc["password"] = string(hash)
				return nil
			},
		},
		&Resource{
			Name:        "roles",
			Singular:    "role",
			Collection:  ColRoles,
			Fields:      []Field{{Name: "name", Rule: "required"}},
			DefaultSort: "name",
			SearchFields: []string{"name"},
			Protected:   []string{"_id", "status"},
		},
		&Resource{
			Name:       "posts",
			Singular:   "post",
			Collection: ColPosts,
			Fields: []Field{
				{Name: "title", Rule: "required"},
				{Name: "brief", Rule: "required"},
				{Name: "body", Rule: "required"},
				{Name: "coverImage", Rule: ""},
				{Name: "tags", Rule: ""},
			},
			Relations:    []Relation{{Field: "author", Target: "users"}},
			DefaultSort:  "uploadDatetime",
			SearchFields: []string{"title", "brief"},
			Filters:      []Filter{{Param: "author", Path: "author._id"}},
			Protected:    []string{"_id", "status", "uploadDatetime", "author"},
			FileFields:   []string{"coverImage.filename"},
			CreatedField: "uploadDatetime",
			ActorField:   "author",
		},
		&Resource{
			Name:       "products",
			Singular:   "product",
			Collection: ColProducts,
			Fields: []Field{
				{Name: "name", Rule: "required"},
				{Name: "description", Rule: ""},
				{Name: "price", Rule: "omitempty,gte=0"},
				{Name: "code", Rule: ""},
				{Name: "sku", Rule: ""},
				{Name: "images", Rule: ""},
			},
			Relations: []Relation{
				{Field: "subcategory", Target: "subcategories",
					Nested: &Relation{Field: "category", Target: "categories"}},
				{Field: "addedBy", Target: "users"},
			},
			DefaultSort:  "uploadDate",
			SearchFields: []string{"name", "code"},
			Filters: []Filter{
				{Param: "subcategory", Path: "subcategory._id"},
				{Param: "category", Path: "subcategory.category._id"},
			},
			Protected:    []string{"_id", "status", "uploadDate", "addedBy"},
			FileFields:   []string{"images.filename"},
			CreatedField: "uploadDate",
			ActorField:   "addedBy",
		},
		&Resource{
			Name:         "subcategories",
			Singular:     "subcategory",
			Collection:   ColSubcategories,
			Fields:       []Field{{Name: "name", Rule: "required"}},
			Relations:    []Relation{{Field: "category", Target: "categories"}},
			DefaultSort:  "name",
			SearchFields: []string{"name"},
			Filters:      []Filter{{Param: "category", Path: "category._id"}},
			Protected:    []string{"_id", "status"},
		},
		&Resource{
			Name:         "categories",
			Singular:     "category",
			Collection:   ColCategories,
			Fields:       []Field{{Name: "name", Rule: "required"}},
			DefaultSort:  "name",
			SearchFields: []string{"name"},
			Protected:    []string{"_id", "status"},
		},
	)
}
