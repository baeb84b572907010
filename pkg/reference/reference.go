package reference

// Unresolved is the id a name resolves to when it has no match in its lookup list.
// The backend treats it as "no linkage".
const Unresolved = 0

type Item struct {
	Id   int
	Name string
}

// Kind names one of the four lookup lists a budget row refers to.
type Kind string

const (
	Project  Kind = "project"
	Employee Kind = "employee"
	Month    Kind = "month"
	Status   Kind = "status"
)

// Kinds lists the lookup kinds in sheet column order.
var Kinds = []Kind{Project, Employee, Month, Status}

// Title is the human readable column title of the kind.
func (k Kind) Title() string {
	switch k {
	case Project:
		return "Project"
	case Employee:
		return "Employee"
	case Month:
		return "Month"
	case Status:
		return "Status"
	}
	return string(k)
}

// Lookups is one consistent snapshot of all reference lists, loaded together.
type Lookups struct {
	Projects  []Item
	Employees []Item
	Months    []Item
	Statuses  []Item
}

func (l Lookups) List(kind Kind) []Item {
	switch kind {
	case Project:
		return l.Projects
	case Employee:
		return l.Employees
	case Month:
		return l.Months
	case Status:
		return l.Statuses
	}
	return nil
}

// Resolve maps a display name of the given kind to its id.
func (l Lookups) Resolve(kind Kind, name string) int {
	return Resolve(name, l.List(kind))
}

func (l Lookups) ResolveProject(name string) int {
	return Resolve(name, l.Projects)
}

func (l Lookups) ResolveEmployee(name string) int {
	return Resolve(name, l.Employees)
}

func (l Lookups) ResolveMonth(name string) int {
	return Resolve(name, l.Months)
}

func (l Lookups) ResolveStatus(name string) int {
	return Resolve(name, l.Statuses)
}

// Names returns the display names of the list in their original order. Used for
// dropdown choices.
func (l Lookups) Names(kind Kind) []string {
	items := l.List(kind)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// NameOf returns the name of the first item with the given id, or an empty string.
func (l Lookups) NameOf(kind Kind, id int) string {
	if id == Unresolved {
		return ""
	}
	for _, item := range l.List(kind) {
		if item.Id == id {
			return item.Name
		}
	}
	return ""
}
