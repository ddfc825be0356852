// Package device holds the per-target constants, CLI-flag configuration, and the
// process-wide state (error sink, unique-id generator) that spec.md §9 says must be
// packaged into an explicit context object rather than left as package globals.
package device

import "github.com/BurntSushi/toml"

// Profile is the fixed set of per-device constants consumed by table placement and
// the alignment solver (spec §6 "Input").
type Profile struct {
	Name string `toml:"name"`

	// Container widths available, in bits. A real device offers 8/16/32-bit normal
	// containers plus mocha and dark containers of the same widths.
	NormalWidths []int `toml:"normal_widths"`

	StageCount        int `toml:"stage_count"`
	LogicalIDCount    int `toml:"logical_id_count"`
	LongBranchTags    int `toml:"long_branch_tags"`
	AlwaysRunImemAddr int `toml:"always_run_imem_addr"`

	// MeterALUByteOffsets lists the byte offsets at which a meter ALU output may be
	// read in 64-bit mode (spec §4.3 step 7): 0, 4, 8, 12.
	MeterALUByteOffsets []int `toml:"meter_alu_byte_offsets"`

	LoadconstMax   int `toml:"loadconst_max"`   // spec §4.3 step 6 / action_analysis.h LOADCONST_MAX
	ConstSrcMax    int `toml:"const_src_max"`    // max bits for a constant on a non-set opcode
	MaxPHVSources  int `toml:"max_phv_sources"`  // spec §4.4 "at most two PHV read sources"
	BacktrackLimit int `toml:"backtrack_limit"`  // global per-pipe backtrack budget, spec §5/§8

	// ATCAMPartitionEntries bounds how many entries one ATCAM partition holds before
	// Transform & Merge (spec §4.9) must split the table into several parallel
	// logical_tables_in_stage sharing that partition.
	ATCAMPartitionEntries int `toml:"atcam_partition_entries"`
}

// DefaultProfile returns the built-in Tofino-shaped device profile used when no
// --device file is supplied.
func DefaultProfile() Profile {
	return Profile{
		Name:                "tofino-default",
		NormalWidths:        []int{8, 16, 32},
		StageCount:          12,
		LogicalIDCount:      16,
		LongBranchTags:      8,
		AlwaysRunImemAddr:   0,
		MeterALUByteOffsets: []int{0, 4, 8, 12},
		LoadconstMax:        21,
		ConstSrcMax:         3,
		MaxPHVSources:       2,
		BacktrackLimit:      1000,
		ATCAMPartitionEntries: 8192,
	}
}

// LoadProfile reads a device profile from a TOML file, filling any field left at its
// zero value from DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
