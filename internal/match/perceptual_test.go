package match

import (
	"fmt"
	"math/rand"
	"testing"

	"dupefinder/internal/imghash"
	"dupefinder/internal/models"
)

func imgWithPrint(path, fileHash string, fp imghash.Fingerprint) *models.ImageInfo {
	return &models.ImageInfo{Path: path, FileHash: fileHash, PerceptualHash: fp.String()}
}

func TestFindPerceptualDuplicates_ClustersWithinThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	base := randomPrint(rng)
	far := randomPrint(rng)

	images := []*models.ImageInfo{
		imgWithPrint("a.jpg", "h1", base),
		imgWithPrint("b.jpg", "h2", flipBits(base, DefaultThreshold, rng)), // boundary: included
		imgWithPrint("c.jpg", "h3", far),
		imgWithPrint("d.jpg", "h4", flipBits(far, DefaultThreshold+1, rng)), // past it: excluded
	}

	groups := FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 1, nil)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.MatchType != models.MatchPerceptual {
		t.Errorf("match type = %q, want %q", g.MatchType, models.MatchPerceptual)
	}
	if len(g.Images) != 2 || g.Images[0].Path != "a.jpg" || g.Images[1].Path != "b.jpg" {
		t.Errorf("group members = %v", paths(g))
	}
}

func TestFindPerceptualDuplicates_TransitiveChain(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := randomPrint(rng)
	b := flipBits(a, 6, rng)
	c := flipBits(b, 6, rng)

	// a-b and b-c are within threshold; a-c may not be, but transitivity
	// pulls all three into one group.
	images := []*models.ImageInfo{
		imgWithPrint("a.jpg", "h1", a),
		imgWithPrint("b.jpg", "h2", b),
		imgWithPrint("c.jpg", "h3", c),
	}

	groups := FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 1, nil)
	if len(groups) != 1 || len(groups[0].Images) != 3 {
		t.Fatalf("groups = %+v, want one group of 3", groups)
	}
}

func TestFindPerceptualDuplicates_ExcludesHashes(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	base := randomPrint(rng)

	images := []*models.ImageInfo{
		imgWithPrint("a.jpg", "exact1", base),
		imgWithPrint("b.jpg", "exact1", base),
		imgWithPrint("c.jpg", "h3", flipBits(base, 4, rng)),
	}

	exclude := map[string]bool{"exact1": true}
	if groups := FindPerceptualDuplicates(images, DefaultThreshold, exclude, LSHOff, 1, nil); groups != nil {
		t.Errorf("got %d groups, want none once exact members are excluded", len(groups))
	}

	groups := FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 1, nil)
	if len(groups) != 1 || len(groups[0].Images) != 3 {
		t.Fatalf("without exclusions all three should cluster, got %+v", groups)
	}
}

func TestFindPerceptualDuplicates_SkipsUnusable(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	base := randomPrint(rng)

	broken := imgWithPrint("broken.jpg", "h2", base)
	broken.Error = "not a valid image file"
	badPrint := &models.ImageInfo{Path: "bad.jpg", FileHash: "h3", PerceptualHash: "zz"}
	noPrint := &models.ImageInfo{Path: "none.cr2", FileHash: "h4"}

	images := []*models.ImageInfo{
		imgWithPrint("a.jpg", "h1", base),
		broken, badPrint, noPrint,
	}

	if groups := FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 1, nil); groups != nil {
		t.Errorf("got %d groups, want none with one usable candidate", len(groups))
	}
}

func TestFindPerceptualDuplicates_StartID(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	a := randomPrint(rng)
	b := randomPrint(rng)

	images := []*models.ImageInfo{
		imgWithPrint("a1.jpg", "h1", a),
		imgWithPrint("a2.jpg", "h2", flipBits(a, 3, rng)),
		imgWithPrint("b1.jpg", "h3", b),
		imgWithPrint("b2.jpg", "h4", flipBits(b, 3, rng)),
	}

	groups := FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 5, nil)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].ID != 5 || groups[1].ID != 6 {
		t.Errorf("group IDs = %d, %d, want 5, 6", groups[0].ID, groups[1].ID)
	}
}

func TestFindPerceptualDuplicates_LSHAgreesWithBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(12))

	var images []*models.ImageInfo
	for b := 0; b < 15; b++ {
		base := randomPrint(rng)
		images = append(images,
			imgWithPrint(fmt.Sprintf("base%d.jpg", b), fmt.Sprintf("hb%d", b), base),
			imgWithPrint(fmt.Sprintf("near%d.jpg", b), fmt.Sprintf("hn%d", b), flipBits(base, 6, rng)),
		)
	}
	for s := 0; s < 10; s++ {
		images = append(images,
			imgWithPrint(fmt.Sprintf("solo%d.jpg", s), fmt.Sprintf("hs%d", s), randomPrint(rng)))
	}

	brute := groupSets(FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 1, nil))
	lsh := groupSets(FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOn, 1, nil))

	if len(brute) != 15 {
		t.Fatalf("brute force found %d groups, want 15", len(brute))
	}
	if !sameGroupSets(brute, lsh) {
		t.Errorf("LSH groups differ from brute force: %v vs %v", lsh, brute)
	}
}

func TestFindPerceptualDuplicates_ProgressReachesTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	var images []*models.ImageInfo
	for i := 0; i < 10; i++ {
		images = append(images,
			imgWithPrint(fmt.Sprintf("i%d.jpg", i), fmt.Sprintf("h%d", i), randomPrint(rng)))
	}

	var last, total int
	FindPerceptualDuplicates(images, DefaultThreshold, nil, LSHOff, 1, func(cur, tot int) {
		last, total = cur, tot
	})
	if total == 0 || last != total {
		t.Errorf("final progress = %d/%d, want a completed total", last, total)
	}
}

func TestFindPerceptualDuplicates_NegativeThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	base := randomPrint(rng)
	images := []*models.ImageInfo{
		imgWithPrint("a.jpg", "h1", base),
		imgWithPrint("b.jpg", "h2", flipBits(base, DefaultThreshold, rng)),
	}

	// A negative threshold falls back to the default.
	groups := FindPerceptualDuplicates(images, -1, nil, LSHOff, 1, nil)
	if len(groups) != 1 {
		t.Errorf("got %d groups, want 1 under the default threshold", len(groups))
	}
}
