package application

import (
	tea "github.com/charmbracelet/bubbletea"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

func buildMenuTree(m *Model) *Menu {
	root := &Menu{
		Title: "dialcodes",
		Items: []MenuItem{
			{Label: "Review records", Action: m.startReview},
			{Label: "Import from clipboard", Action: m.importClipboard},
			{Label: "Mode ->", Submenu: loadModeMenu(m)},
			{Label: "Info ->", Submenu: loadInfoMenu(m)},
			{Label: "Clear all ->", Submenu: loadClearMenu(m)},
		},
	}

	linkParents(root, nil)

	return root
}

/* ----------------------------------------
	LOAD MENUS
---------------------------------------- */

func loadModeMenu(m *Model) *Menu {
	return &Menu{
		Title: "Payload mode",
		Items: []MenuItem{
			{Label: "Direct dial", Action: m.setMode(modeDirect)},
			{Label: "Confirmation link", Action: m.setMode(modeLink)},
			{Label: "Back"},
		},
	}
}

func loadInfoMenu(m *Model) *Menu {
	return &Menu{
		Title: "Info",
		Items: []MenuItem{
			{Label: "Record count", Action: m.recordCount},
			{Label: "Store", Action: m.storeInfo},
			{Label: "Back"},
		},
	}
}

func loadClearMenu(m *Model) *Menu {
	return &Menu{
		Title: "Clear all records?",
		Items: []MenuItem{
			{Label: "Yes, delete every record", Action: m.clearAll},
			{Label: "Back"},
		},
	}
}
