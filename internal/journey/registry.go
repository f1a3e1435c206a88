package journey

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

const (
	DefaultMaxAttempts = 5

	// VehicleTileSelector is the first vehicle image on the online shop
	// search results page.
	VehicleTileSelector = "img.wbx-vehicle-tile__image-img"
	tileTimeout         = 20 * time.Second

	configuratorNav = "#cc-app-container-main > div.cc-app-container__main-frame.cc-grid-container > div.cc-app-container__navigation.ng-star-inserted > cc-navigation > nav > div > ul"
)

// shadowClick returns a script that clicks selector inside the car
// configurator's shadow root. With inner set it prefers a link or button
// inside the matched element.
func shadowClick(selector string, inner bool) string {
	return fmt.Sprintf(`(() => {
  const host = document.querySelector("owcc-car-configurator");
  const root = host && host.shadowRoot;
  const el = root && root.querySelector(%q);
  if (!el) return false;
  const target = (%t && el.querySelector("a, button")) || el;
  target.scrollIntoView({block: "center"});
  target.click();
  return true;
})()`, selector, inner)
}

// configuratorStarted opens the navigation and moves to the second
// configurator section.
func configuratorStarted() []Step {
	return []Step{
		{Kind: StepScript, Script: shadowClick(configuratorNav, false), Optional: true},
		{Kind: StepSleep, Wait: 2 * time.Second},
		{Kind: StepScript, Script: shadowClick(configuratorNav+" > li:nth-child(2)", true), Optional: true},
		{Kind: StepSleep, Wait: 2 * time.Second},
	}
}

// configuratorCompleted opens the navigation and jumps to the summary.
func configuratorCompleted() []Step {
	return []Step{
		{Kind: StepScript, Script: shadowClick(configuratorNav, false), Optional: true},
		{Kind: StepSleep, Wait: 3 * time.Second},
		{Kind: StepScript, Script: shadowClick(configuratorNav+" > li:last-child", false), Optional: true},
		{Kind: StepSleep, Wait: 3 * time.Second},
	}
}

func nav(kind schemas.URLKind, wait time.Duration) []Step {
	steps := []Step{{Kind: StepNavigate, URL: kind}}
	if wait > 0 {
		steps = append(steps, Step{Kind: StepSleep, Wait: wait})
	}
	return steps
}

func seq(parts ...[]Step) []Step {
	var out []Step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	needConfigurator = []schemas.URLKind{schemas.URLConfigurator}
	needShop         = []schemas.URLKind{schemas.URLOnlineShop}
)

var registry = []Journey{
	{
		Name:         "BFV1",
		Requires:     needConfigurator,
		TestLinkBase: schemas.URLHomePage,
		Steps:        seq(nav(schemas.URLProductPage, 3*time.Second), nav(schemas.URLHomePage, 0)),
	},
	{
		Name:         "BFV2",
		Requires:     []schemas.URLKind{schemas.URLConfigurator, schemas.URLOnlineShop},
		TestLinkBase: schemas.URLHomePage,
		Steps: seq(
			nav(schemas.URLProductPage, 3*time.Second),
			nav(schemas.URLConfigurator, 4*time.Second),
			configuratorStarted(),
			nav(schemas.URLHomePage, 0),
		),
	},
	{
		Name:         "BFV3",
		Requires:     []schemas.URLKind{schemas.URLConfigurator, schemas.URLOnlineShop, schemas.URLTestDrive},
		TestLinkBase: schemas.URLHomePage,
		Steps: seq(
			nav(schemas.URLProductPage, 3*time.Second),
			nav(schemas.URLConfigurator, 4*time.Second),
			configuratorCompleted(),
			nav(schemas.URLHomePage, 0),
		),
	},
	{
		Name:         "Last Configuration Started",
		Requires:     needConfigurator,
		TestLinkBase: schemas.URLHomePage,
		Steps: seq(
			nav(schemas.URLConfigurator, 4*time.Second),
			[]Step{
				{Kind: StepScript, Script: shadowClick(configuratorNav+" > li:nth-child(3) > ccwb-text > a", false)},
				{Kind: StepSleep, Wait: 5 * time.Second},
			},
			nav(schemas.URLHomePage, 0),
		),
	},
	{
		Name:         "Last Configuration Completed",
		Requires:     needConfigurator,
		TestLinkBase: schemas.URLHomePage,
		Steps: seq(
			nav(schemas.URLConfigurator, 4*time.Second),
			configuratorCompleted(),
			nav(schemas.URLHomePage, 4*time.Second),
		),
	},
	{
		Name:         "Last Seen SRP",
		Requires:     needShop,
		TestLinkBase: schemas.URLHomePage,
		Steps: seq(
			nav(schemas.URLOnlineShop, 0),
			[]Step{
				{Kind: StepWaitVisible, Selector: VehicleTileSelector, Wait: tileTimeout},
				{Kind: StepSleep, Wait: 4 * time.Second},
			},
			nav(schemas.URLHomePage, 0),
		),
	},
	{
		Name:         "Last Seen PDP",
		Requires:     needShop,
		TestLinkBase: schemas.URLHomePage,
		Steps: seq(
			nav(schemas.URLOnlineShop, 0),
			[]Step{
				{Kind: StepWaitVisible, Selector: VehicleTileSelector, Wait: tileTimeout},
				{Kind: StepFollowLink, Selector: VehicleTileSelector},
				{Kind: StepSleep, Wait: 6 * time.Second},
			},
			nav(schemas.URLHomePage, 2*time.Second),
		),
	},
	{
		Name:         "Personalized CTA 1",
		TestLinkBase: schemas.URLProductPage,
		Steps:        seq(nav(schemas.URLProductPage, 3*time.Second), nav(schemas.URLProductPage, 0)),
	},
	{
		Name:         "Personalized CTA 2",
		Requires:     needConfigurator,
		TestLinkBase: schemas.URLProductPage,
		Steps: seq(
			nav(schemas.URLProductPage, 3*time.Second),
			nav(schemas.URLConfigurator, 4*time.Second),
			nav(schemas.URLProductPage, 0),
		),
	},
	{
		Name:         "Personalized CTA 3",
		Requires:     needShop,
		TestLinkBase: schemas.URLProductPage,
		Steps: seq(
			nav(schemas.URLProductPage, 3*time.Second),
			nav(schemas.URLOnlineShop, 0),
			[]Step{
				{Kind: StepWaitVisible, Selector: VehicleTileSelector, Wait: tileTimeout},
				{Kind: StepSleep, Wait: 4 * time.Second},
			},
			nav(schemas.URLProductPage, 0),
		),
	},
	{
		Name:         "Personalized CTA 4",
		Requires:     []schemas.URLKind{schemas.URLConfigurator, schemas.URLOnlineShop},
		TestLinkBase: schemas.URLProductPage,
		Steps: seq(
			nav(schemas.URLProductPage, 3*time.Second),
			nav(schemas.URLConfigurator, 4*time.Second),
			configuratorCompleted(),
			nav(schemas.URLOnlineShop, 0),
			[]Step{
				{Kind: StepWaitVisible, Selector: VehicleTileSelector, Wait: tileTimeout},
				{Kind: StepClick, Selector: VehicleTileSelector},
				{Kind: StepSleep, Wait: 4 * time.Second},
			},
			nav(schemas.URLProductPage, 0),
		),
	},
}

func init() {
	for i := range registry {
		if registry[i].MaxAttempts == 0 {
			registry[i].MaxAttempts = DefaultMaxAttempts
		}
	}
}
