// SPDX-License-Identifier: Apache-2.0

// Package differ computes a change plan between a bundle's Desired State
// and a database's Observed State, classifying every proposed change as
// safe, data-loss, or incompatible.
package differ

import (
	"sort"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// Classification is one of the three buckets the differ sorts changes into.
type Classification string

const (
	Safe         Classification = "safe"
	DataLoss     Classification = "data_loss"
	Incompatible Classification = "incompatible"
)

// Action names what the Reconciler must do to realize a change.
type Action string

const (
	ActionInstall       Action = "install"
	ActionDeploy        Action = "deploy"
	ActionReplace       Action = "replace"
	ActionDropOldCreate Action = "drop_old_create"
	ActionDrop          Action = "drop"
	ActionApply         Action = "apply"
	ActionAddColumn     Action = "add_column"
	ActionDropColumn    Action = "drop_column"
	ActionAlterType     Action = "alter_type"
	ActionDropTable     Action = "drop_table"
	ActionRunIfEmpty    Action = "run_if_empty"
	ActionValidateCount Action = "validate_count"
)

// Change is one proposed modification.
type Change struct {
	Entity         string // "extension", "type", "table", "migration", "function", "seeder"
	Name           string
	Action         Action
	Classification Classification
	Detail         string
}

// Plan is the full set of changes a reconcile would make, sorted into the
// three buckets the deploy endpoints report.
type Plan struct {
	Safe         []Change
	DataLoss     []Change
	Incompatible []Change

	// CorruptedHistory holds migrations whose recorded checksum no longer
	// matches their on-disk checksum — always a hard failure, reported
	// separately since it is never safe to force past.
	CorruptedHistory []Change
}

// add files c into the plan by its Classification.
func (p *Plan) add(c Change) {
	switch c.Classification {
	case Safe:
		p.Safe = append(p.Safe, c)
	case DataLoss:
		p.DataLoss = append(p.DataLoss, c)
	case Incompatible:
		p.Incompatible = append(p.Incompatible, c)
	}
}

// Blocked reports whether this plan must not be applied without force.
func (p *Plan) Blocked(force bool) bool {
	if len(p.Incompatible) > 0 || len(p.CorruptedHistory) > 0 {
		return true
	}
	return len(p.DataLoss) > 0 && !force
}

// Diff computes the change plan for desired against obs. firstTimeDeploy
// controls Seeder classification: RunIfEmpty on a fresh deploy,
// ValidateCount on a reconcile of an existing database.
func Diff(desired gwschema.DesiredState, obs *gwschema.ObservedState, firstTimeDeploy bool) *Plan {
	plan := &Plan{}

	diffExtensions(plan, desired.Extensions, obs)
	diffTypes(plan, desired.Types, obs)
	diffTables(plan, desired.Tables, obs)
	diffMigrations(plan, desired.Migrations, obs)
	diffFunctions(plan, desired.Functions, obs)
	diffSeeders(plan, desired.Seeders, firstTimeDeploy)

	return plan
}

func diffExtensions(plan *Plan, extensions []gwschema.Extension, obs *gwschema.ObservedState) {
	for _, e := range extensions {
		if !obs.Extensions[e.Name] {
			plan.add(Change{Entity: "extension", Name: e.Name, Action: ActionInstall, Classification: Safe})
		}
	}
}

func diffTypes(plan *Plan, types []gwschema.Type, obs *gwschema.ObservedState) {
	for _, t := range types {
		recorded, exists := obs.Types[t.Name]
		switch {
		case !exists:
			plan.add(Change{Entity: "type", Name: t.Name, Action: ActionDeploy, Classification: Safe})
		case recorded != t.Checksum:
			plan.add(Change{
				Entity: "type", Name: t.Name, Action: ActionAlterType, Classification: Incompatible,
				Detail: "type body changed; write a migration instead",
			})
		}
	}
}

func diffMigrations(plan *Plan, migrations []gwschema.Migration, obs *gwschema.ObservedState) {
	for _, m := range migrations {
		recorded, exists := obs.Migrations[m.Filename]
		switch {
		case !exists:
			plan.add(Change{Entity: "migration", Name: m.Filename, Action: ActionApply, Classification: Safe})
		case recorded != m.Checksum:
			plan.CorruptedHistory = append(plan.CorruptedHistory, Change{
				Entity: "migration", Name: m.Filename, Action: ActionApply, Classification: Incompatible,
				Detail: "recorded checksum diverges from on-disk checksum",
			})
		}
	}
}

func diffFunctions(plan *Plan, functions []gwschema.Function, obs *gwschema.ObservedState) {
	desiredByName := map[string][]gwschema.Function{}
	desiredKeys := map[string]bool{}
	for _, f := range functions {
		desiredKeys[gwschema.FunctionKey(f.Name, f.ParamTypes)] = true
	}

	for _, f := range functions {
		key := gwschema.FunctionKey(f.Name, f.ParamTypes)
		desiredKeys[key] = true
		desiredByName[f.Name] = append(desiredByName[f.Name], f)

		tracked, exists := obs.Functions[key]
		switch {
		case !exists:
			// Same name, different signature tracked and no longer in the
			// bundle -> signature change: drop the old one, create the new.
			// A tracked signature that is still in the bundle makes this an
			// overload addition, a plain Deploy.
			if hasOtherSignature(obs, f.Name, f.ParamTypes, desiredKeys) {
				plan.add(Change{Entity: "function", Name: key, Action: ActionDropOldCreate, Classification: Safe})
			} else {
				plan.add(Change{Entity: "function", Name: key, Action: ActionDeploy, Classification: Safe})
			}
		case tracked.Checksum != f.Checksum:
			plan.add(Change{Entity: "function", Name: key, Action: ActionReplace, Classification: Safe})
		}
	}

	for key := range obs.Functions {
		if !desiredKeys[key] {
			plan.add(Change{Entity: "function", Name: key, Action: ActionDrop, Classification: Safe})
		}
	}
}

func hasOtherSignature(obs *gwschema.ObservedState, name string, sig gwschema.Signature, desiredKeys map[string]bool) bool {
	for key, f := range obs.Functions {
		if f.Name == name && key != gwschema.FunctionKey(name, sig) && !desiredKeys[key] {
			return true
		}
	}
	return false
}

func diffSeeders(plan *Plan, seeders []gwschema.Seeder, firstTimeDeploy bool) {
	action := ActionValidateCount
	if firstTimeDeploy {
		action = ActionRunIfEmpty
	}
	for _, s := range seeders {
		plan.add(Change{Entity: "seeder", Name: s.Table, Action: action, Classification: Safe})
	}
}

func diffTables(plan *Plan, tables []gwschema.Table, obs *gwschema.ObservedState) {
	names := make([]string, 0, len(tables))
	byName := map[string]gwschema.Table{}
	for _, t := range tables {
		names = append(names, t.Name)
		byName[t.Name] = t
	}
	sort.Strings(names)

	for _, name := range names {
		t := byName[name]
		observed, exists := obs.Tables[name]
		if !exists || observed == nil || len(observed.Columns) == 0 {
			plan.add(Change{Entity: "table", Name: name, Action: ActionDeploy, Classification: Safe})
			continue
		}
		// A table whose content checksum matches what the gateway last
		// deployed has not changed on the desired side; skip column-diffing
		// it entirely rather than re-deriving the same no-op result, per
		// "apply only what has actually changed using content checksums."
		if observed.TrackedChecksum != "" && observed.TrackedChecksum == t.Checksum {
			continue
		}
		diffTableColumns(plan, t, observed)
	}

	for name, observed := range obs.Tables {
		if _, wanted := byName[name]; !wanted && observed != nil && len(observed.Columns) > 0 {
			plan.add(Change{Entity: "table", Name: name, Action: ActionDropTable, Classification: DataLoss})
		}
	}
}

func diffTableColumns(plan *Plan, desired gwschema.Table, observed *gwschema.ObservedTable) {
	observedCols := map[string]gwschema.ObservedColumn{}
	for _, c := range observed.Columns {
		observedCols[c.Name] = c
	}

	desiredCols := map[string]bool{}
	for _, c := range desired.Columns {
		desiredCols[c.Name] = true
		oc, exists := observedCols[c.Name]
		if !exists {
			if c.Nullable || c.HasDefault {
				plan.add(Change{Entity: "table", Name: desired.Name + "." + c.Name, Action: ActionAddColumn, Classification: Safe})
			} else {
				plan.add(Change{
					Entity: "table", Name: desired.Name + "." + c.Name, Action: ActionAddColumn, Classification: DataLoss,
					Detail: "NOT NULL column added without a default",
				})
			}
			continue
		}

		if !typesEqual(oc.DeclaredType, c.DeclaredType) {
			cls := classifyTypeChange(oc.DeclaredType, c.DeclaredType)
			plan.add(Change{
				Entity: "table", Name: desired.Name + "." + c.Name, Action: ActionAlterType, Classification: cls,
				Detail: oc.DeclaredType + " -> " + c.DeclaredType,
			})
		}
	}

	for name := range observedCols {
		if !desiredCols[name] {
			plan.add(Change{Entity: "table", Name: desired.Name + "." + name, Action: ActionDropColumn, Classification: DataLoss})
		}
	}
}
