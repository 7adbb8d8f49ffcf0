package rate

import "strings"

// ContainerClass is the normalized container type used to key base rates.
type ContainerClass string

const (
	Container20DV    ContainerClass = "20DV"
	Container40DV    ContainerClass = "40DV"
	Container40HC    ContainerClass = "40HC"
	ContainerUnknown ContainerClass = "Unknown"
)

var highCubeMarkers = []string{"40HC", "40 HC", "40HQ", "40 HQ"}

// NormalizeContainer maps free-text container types onto a ContainerClass.
// Checks run in order: any "20" is a 20DV, high-cube markers win over a
// plain "40".
func NormalizeContainer(containerType string) ContainerClass {
	s := strings.ToUpper(containerType)
	if strings.Contains(s, "20") {
		return Container20DV
	}
	for _, m := range highCubeMarkers {
		if strings.Contains(s, m) {
			return Container40HC
		}
	}
	if strings.Contains(s, "40") {
		return Container40DV
	}
	return ContainerUnknown
}
