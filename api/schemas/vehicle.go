package schemas

// URLKind names one of the deep links the vehicle API returns for a model.
type URLKind string

const (
	URLHomePage     URLKind = "HOME_PAGE"
	URLProductPage  URLKind = "PRODUCT_PAGE"
	URLConfigurator URLKind = "CONFIGURATOR"
	URLOnlineShop   URLKind = "ONLINE_SHOP"
	URLTestDrive    URLKind = "TEST_DRIVE"
)

// VehicleURLs holds the resolved deep links and derived labels for one
// model series in one market.
type VehicleURLs struct {
	HomePage     string `json:"HOME_PAGE"`
	ProductPage  string `json:"PRODUCT_PAGE,omitempty"`
	Configurator string `json:"CONFIGURATOR,omitempty"`
	OnlineShop   string `json:"ONLINE_SHOP,omitempty"`
	TestDrive    string `json:"TEST_DRIVE,omitempty"`
	ModelName    string `json:"MODEL_NAME,omitempty"`
	BodyType     string `json:"BODY_TYPE,omitempty"`
}

// Get returns the URL for kind, or "" if it is absent.
func (v VehicleURLs) Get(kind URLKind) string {
	switch kind {
	case URLHomePage:
		return v.HomePage
	case URLProductPage:
		return v.ProductPage
	case URLConfigurator:
		return v.Configurator
	case URLOnlineShop:
		return v.OnlineShop
	case URLTestDrive:
		return v.TestDrive
	}
	return ""
}
